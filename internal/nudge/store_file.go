package nudge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rshade/ecojourney/internal/logging"
)

// ErrStoreCorrupted indicates the history file exists but contains
// invalid data. Callers should abort unless the user resets it.
var ErrStoreCorrupted = errors.New("nudge history file corrupted")

// FileStoreVersion is the schema version of the history file.
const FileStoreVersion = 1

type fileStoreData struct {
	Version int                `json:"version"`
	Users   map[string]History `json:"users"`
}

// FileHistoryStore keeps history in a JSON file. Every Put re-reads and
// rewrites the file atomically under a cross-process lock file.
type FileHistoryStore struct {
	mu       sync.RWMutex
	filePath string
	users    map[string]History
}

var _ HistoryStore = (*FileHistoryStore)(nil)

// NewFileHistoryStore opens the store at filePath, defaulting to
// ~/.ecojourney/nudges.json, and loads any existing state.
func NewFileHistoryStore(filePath string) (*FileHistoryStore, error) {
	if filePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("determining home directory: %w", err)
		}
		filePath = filepath.Join(homeDir, ".ecojourney", "nudges.json")
	}
	s := &FileHistoryStore{
		filePath: filePath,
		users:    make(map[string]History),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// FilePath returns the backing file.
func (s *FileHistoryStore) FilePath() string { return s.filePath }

func (s *FileHistoryStore) lockFilePath() string { return s.filePath + ".lock" }

// acquireFileLock creates the lock file exclusively and returns a
// release function.
func (s *FileHistoryStore) acquireFileLock() (func(), error) {
	lockPath := s.lockFilePath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	const (
		maxRetries   = 10
		retryDelay   = 100 * time.Millisecond
		staleLockAge = 30 * time.Second
	)
	for range maxRetries {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d", os.Getpid())
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if removeStaleLock(lockPath, staleLockAge) {
			continue
		}
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("could not acquire lock on %s after retries", lockPath)
}

// removeStaleLock deletes a lock older than maxAge whose owner is gone.
func removeStaleLock(lockPath string, maxAge time.Duration) bool {
	info, err := os.Stat(lockPath)
	if err != nil || time.Since(info.ModTime()) <= maxAge {
		return false
	}
	if lockOwnerAlive(lockPath) {
		return false
	}
	_ = os.Remove(lockPath)
	return true
}

func lockOwnerAlive(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil || len(data) == 0 {
		return false
	}
	var pid int
	if _, scanErr := fmt.Sscanf(string(data), "%d", &pid); scanErr != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence.
	return proc.Signal(syscall.Signal(0)) == nil
}

// Load replaces the in-memory state with the file contents. A missing
// file is an empty store.
func (s *FileHistoryStore) Load() error {
	unlock, err := s.acquireFileLock()
	if err != nil {
		return fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readFile()
	if err != nil {
		return err
	}
	s.users = users
	return nil
}

// readFile decodes the history file. The caller holds the file lock.
func (s *FileHistoryStore) readFile() (map[string]History, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]History), nil
		}
		return nil, fmt.Errorf("reading nudge history file: %w", err)
	}

	var stored fileStoreData
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreCorrupted, err)
	}
	if stored.Version != FileStoreVersion {
		return nil, fmt.Errorf("%w: unsupported version %d (expected %d)",
			ErrStoreCorrupted, stored.Version, FileStoreVersion)
	}
	if stored.Users == nil {
		stored.Users = make(map[string]History)
	}
	return stored.Users, nil
}

// Get implements HistoryStore.
func (s *FileHistoryStore) Get(_ context.Context, userID string) (History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID].Clone(), nil
}

// Put implements HistoryStore. Under the file lock it re-reads the file,
// so writes from other handles survive, and merges h into the stored
// entry for userID before rewriting the file.
func (s *FileHistoryStore) Put(ctx context.Context, userID string, h History) error {
	unlock, err := s.acquireFileLock()
	if err != nil {
		return fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readFile()
	if err != nil {
		return err
	}
	users[userID] = users[userID].merge(h)
	if err := s.save(users); err != nil {
		return err
	}
	s.users = users
	logging.FromContext(ctx).Debug().
		Str("component", "nudge").
		Str("user_id", userID).
		Str("path", s.filePath).
		Msg("nudge history saved")
	return nil
}

func (s *FileHistoryStore) save(users map[string]History) error {
	data, err := json.MarshalIndent(fileStoreData{Version: FileStoreVersion, Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling nudge history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o750); err != nil {
		return fmt.Errorf("creating nudge history directory: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing nudge history temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming nudge history temp file: %w", err)
	}
	return nil
}

// Count returns the number of users with history.
func (s *FileHistoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
