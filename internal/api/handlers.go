package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rshade/ecojourney/internal/emissions"
	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/journey"
	"github.com/rshade/ecojourney/internal/nudge"
	"github.com/rshade/ecojourney/internal/saf"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

type flightRequest struct {
	RouteID    string `json:"route_id"`
	Passengers *int   `json:"passengers,omitempty"`
	CabinClass string `json:"cabin_class,omitempty"`
}

func (f flightRequest) toRequest() (emissions.Request, error) {
	req := emissions.NewRequest(f.RouteID)
	if f.Passengers != nil {
		req.Passengers = *f.Passengers
	}
	cabin, err := emissions.ParseCabinClass(f.CabinClass)
	if err != nil {
		return emissions.Request{}, err
	}
	req.CabinClass = cabin
	return req, nil
}

func decodeFlight(r *http.Request) (emissions.Request, error) {
	var body flightRequest
	if err := decodeBody(r, &body); err != nil {
		return emissions.Request{}, err
	}
	if body.RouteID == "" {
		return emissions.Request{}, fmt.Errorf("%w: route_id is required", greenops.ErrInvalidInput)
	}
	return body.toRequest()
}

// POST /v1/flights/estimate
func (s *Server) handleEstimateFlight(w http.ResponseWriter, r *http.Request) {
	req, err := decodeFlight(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	out, err := s.svc.EstimateFlight(req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /v1/users/{userID}/flights
func (s *Server) handleCalculateFlight(w http.ResponseWriter, r *http.Request) {
	req, err := decodeFlight(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	out, err := s.svc.CalculateFlight(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type safRequest struct {
	Percent *float64 `json:"percent,omitempty"`
	Amount  *float64 `json:"amount,omitempty"`
}

// POST /v1/users/{userID}/saf
func (s *Server) handleContributeSAF(w http.ResponseWriter, r *http.Request) {
	var body safRequest
	if err := decodeBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}

	userID := chi.URLParam(r, "userID")
	var (
		out journey.ContributionOutcome
		err error
	)
	switch {
	case body.Percent != nil && body.Amount == nil:
		out, err = s.svc.ContributeSAFByPercent(r.Context(), userID, *body.Percent)
	case body.Amount != nil && body.Percent == nil:
		out, err = s.svc.ContributeSAFByAmount(r.Context(), userID, *body.Amount)
	default:
		err = fmt.Errorf("%w: exactly one of percent or amount is required", greenops.ErrInvalidInput)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

type offsetRequest struct {
	Percent float64 `json:"percent"`
}

// POST /v1/users/{userID}/offsets
func (s *Server) handlePurchaseOffset(w http.ResponseWriter, r *http.Request) {
	var body offsetRequest
	if err := decodeBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	out, err := s.svc.PurchaseOffset(r.Context(), chi.URLParam(r, "userID"), body.Percent)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// POST /v1/users/{userID}/actions
func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	var body journey.ActionRequest
	if err := decodeBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	out, err := s.svc.RecordAction(r.Context(), chi.URLParam(r, "userID"), body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// GET /v1/users/{userID}/points
func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Points(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /v1/users/{userID}/journey
func (s *Server) handleJourney(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Journey(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /v1/users/{userID}/activities?limit=N
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxActivityLimit {
			fail(w, r, fmt.Errorf("%w: limit must be between 1 and %d", greenops.ErrInvalidInput, maxActivityLimit))
			return
		}
		limit = n
	}
	acts, err := s.svc.Activities(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": acts, "count": len(acts)})
}

type nudgeResponse struct {
	Nudge *nudge.Nudge `json:"nudge"`
}

// POST /v1/users/{userID}/nudges/next
func (s *Server) handleNextNudge(w http.ResponseWriter, r *http.Request) {
	var body journey.NudgeRequest
	if err := decodeBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	n, err := s.svc.NextNudge(r.Context(), chi.URLParam(r, "userID"), body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nudgeResponse{Nudge: n})
}

// GET /v1/users/{userID}/nudges/preview?lat=..&lon=..
func (s *Server) handlePreviewNudge(w http.ResponseWriter, r *http.Request) {
	req, err := nudgeRequestFromQuery(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	n, err := s.svc.PreviewNudge(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nudgeResponse{Nudge: n})
}

func nudgeRequestFromQuery(r *http.Request) (journey.NudgeRequest, error) {
	q := r.URL.Query()
	lat, lon := q.Get("lat"), q.Get("lon")
	if lat == "" && lon == "" {
		return journey.NudgeRequest{}, nil
	}
	la, errLat := strconv.ParseFloat(lat, 64)
	lo, errLon := strconv.ParseFloat(lon, 64)
	if errLat != nil || errLon != nil {
		return journey.NudgeRequest{}, fmt.Errorf("%w: lat and lon must both be numbers", greenops.ErrInvalidInput)
	}
	return journey.NudgeRequest{Location: &nudge.Location{Latitude: la, Longitude: lo}}, nil
}

// GET /v1/users/{userID}/nudges/history
func (s *Server) handleNudgeHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.NudgeHistory(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// POST /v1/users/{userID}/nudges/{nudgeID}/dismiss
func (s *Server) handleDismissNudge(w http.ResponseWriter, r *http.Request) {
	nudgeID := chi.URLParam(r, "nudgeID")
	if err := s.svc.DismissNudge(r.Context(), chi.URLParam(r, "userID"), nudgeID); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"dismissed": nudgeID})
}

type verificationRequest struct {
	Status saf.Status `json:"status"`
}

// POST /v1/saf/{certificateID}/verification
func (s *Server) handleVerifySAF(w http.ResponseWriter, r *http.Request) {
	var body verificationRequest
	if err := decodeBody(r, &body); err != nil {
		fail(w, r, err)
		return
	}
	c, err := s.svc.VerifyContribution(r.Context(), chi.URLParam(r, "certificateID"), body.Status)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GET /v1/tiers
func (s *Server) handleTiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tiers": s.svc.Tiers()})
}

// GET /v1/tiers/{tierID}
func (s *Server) handleTier(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Tier(chi.URLParam(r, "tierID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GET /v1/equivalencies?value=1.2&unit=t
func (s *Server) handleEquivalencies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	value, err := strconv.ParseFloat(q.Get("value"), 64)
	if err != nil {
		fail(w, r, fmt.Errorf("%w: value must be a number", greenops.ErrInvalidInput))
		return
	}
	unit := q.Get("unit")
	if unit == "" {
		unit = "kg"
	}
	eq, err := greenops.Calculate(greenops.CarbonInput{Value: value, Unit: unit})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eq)
}
