package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

const (
	defaultSessionID = "default"
	lockRetryDelay   = 20 * time.Millisecond
	staleLockAge     = 2 * time.Minute
)

// Entry is one dispatched exchange in a transcript.
type Entry struct {
	Time       time.Time `json:"time"`
	RequestID  string    `json:"request_id"`
	Intent     string    `json:"intent"`
	PersonaID  string    `json:"persona_id"`
	Score      float64   `json:"score,omitempty"`
	Reply      string    `json:"reply"`
	StopReason string    `json:"stop_reason,omitempty"`
	Tokens     int       `json:"tokens,omitempty"`
}

type filePayload struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Store persists dispatch transcripts on disk.
type Store struct {
	path     string
	lockPath string
	mu       sync.Mutex
}

// NewStore creates a file-backed transcript store in .pd/transcripts.
func NewStore(workDir, sessionID string) (*Store, error) {
	root := strings.TrimSpace(workDir)
	if root == "" {
		return nil, fmt.Errorf("persist: workdir is required")
	}
	id := strings.TrimSpace(sessionID)
	if id == "" {
		id = defaultSessionID
	}
	if !sessionIDPattern.MatchString(id) {
		return nil, fmt.Errorf("persist: invalid session id %q", sessionID)
	}
	dir := filepath.Join(root, ".pd", "transcripts")
	return &Store{
		path:     filepath.Join(dir, id+".json"),
		lockPath: filepath.Join(dir, id+".lock"),
	}, nil
}

// Path returns the underlying JSON file path.
func (s *Store) Path() string {
	return s.path
}

// Append stores an entry.
func (s *Store) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return s.saveLocked(entries)
}

// Load reads all stored entries.
func (s *Store) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.loadLocked()
}

// Replace overwrites stored entries.
func (s *Store) Replace(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return s.saveLocked(entries)
}

func (s *Store) loadLocked() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var payload filePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("persist: decode %s: %w", s.path, err)
	}
	out := make([]Entry, len(payload.Entries))
	copy(out, payload.Entries)
	return out, nil
}

func (s *Store) saveLocked(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	payload := filePayload{
		Version: 1,
		Entries: make([]Entry, len(entries)),
	}
	copy(payload.Entries, entries)
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmp)
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err == nil {
		return nil
	}
	// Windows does not always allow rename-over-existing semantics.
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) acquireLock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
		return nil, err
	}
	for {
		lock, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(lock, "pid=%d\n", os.Getpid())
			_ = lock.Close()
			return func() {
				_ = os.Remove(s.lockPath)
			}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		stale, staleErr := s.isLockStale()
		if staleErr == nil && stale {
			_ = os.Remove(s.lockPath)
			continue
		}
		timer := time.NewTimer(lockRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Store) isLockStale() (bool, error) {
	info, err := os.Stat(s.lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return time.Since(info.ModTime()) > staleLockAge, nil
}
