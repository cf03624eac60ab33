package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/ecojourney/internal/activity"
	"github.com/rshade/ecojourney/internal/config"
	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/emissions"
	"github.com/rshade/ecojourney/internal/journey"
	"github.com/rshade/ecojourney/internal/logging"
	"github.com/rshade/ecojourney/internal/metrics"
	"github.com/rshade/ecojourney/internal/nudge"
	"github.com/rshade/ecojourney/internal/refdata"
	"github.com/rshade/ecojourney/internal/saf"
)

// core holds the stateless collaborators every command needs.
type core struct {
	refs       *refdata.Snapshot
	calculator *emissions.Calculator
	points     *ecopoints.Engine
	saf        *saf.Ledger
}

func buildCore(cfg *config.Config) (*core, error) {
	refs, err := cfg.LoadRefData()
	if err != nil {
		return nil, err
	}
	rf, err := cfg.RadiativeForcing()
	if err != nil {
		return nil, err
	}
	engine, err := ecopoints.NewEngine(refs.Tiers())
	if err != nil {
		return nil, err
	}
	ledger, err := saf.NewLedger(cfg.SAFMarket())
	if err != nil {
		return nil, err
	}
	return &core{
		refs:       refs,
		calculator: emissions.NewCalculator(refs, rf),
		points:     engine,
		saf:        ledger,
	}, nil
}

// closers runs cleanup functions in reverse order.
type closers []func() error

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

// buildService wires the journey service with the storage backends
// selected in cfg. The returned closer releases them.
func buildService(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*journey.Service, closers, error) {
	logger := logging.FromContext(ctx).With().Str("component", "cli").Logger()

	var cleanup closers
	fail := func(err error) (*journey.Service, closers, error) {
		if cerr := cleanup.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, nil, err
	}

	c, err := buildCore(cfg)
	if err != nil {
		return fail(err)
	}

	var log activity.Log
	if path := cfg.Storage.ActivityDB; path != "" {
		db, err := activity.OpenSQLite(ctx, path)
		if err != nil {
			return fail(err)
		}
		cleanup = append(cleanup, db.Close)
		log = db
		logger.Info().Str("path", path).Msg("activity log: sqlite")
	} else {
		log = activity.NewMemoryLog()
		logger.Info().Msg("activity log: memory")
	}

	store, closeStore, err := openHistoryStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if closeStore != nil {
		cleanup = append(cleanup, closeStore)
	}
	logger.Info().Str("backend", cfg.Storage.NudgeBackend).Msg("nudge history store")

	settings, err := cfg.NudgeSettings(c.refs.CupStations())
	if err != nil {
		return fail(err)
	}
	nudges, err := nudge.NewEngine(store, settings)
	if err != nil {
		return fail(err)
	}

	svc, err := journey.New(journey.Deps{
		Calculator:          c.calculator,
		SAF:                 c.saf,
		OffsetPricePerTonne: cfg.Offsets.PricePerTonne,
		Points:              ecopoints.NewLedger(c.points, ecopoints.WithLoader(journey.PointsLoader(log))),
		Nudges:              nudges,
		Activities:          log,
		Metrics:             m,
	})
	if err != nil {
		return fail(err)
	}
	return svc, cleanup, nil
}

func openHistoryStore(ctx context.Context, cfg *config.Config) (nudge.HistoryStore, func() error, error) {
	switch cfg.Storage.NudgeBackend {
	case config.BackendFile:
		s, err := nudge.NewFileHistoryStore(cfg.Storage.NudgeFile)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.BackendRedis:
		client, err := nudge.NewRedisClient(cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		s := nudge.NewRedisHistoryStore(client, cfg.Storage.RedisKeyPrefix, cfg.Storage.NudgeTTL)
		if err := s.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return s, client.Close, nil
	default:
		return nudge.NewMemoryHistoryStore(), nil, nil
	}
}
