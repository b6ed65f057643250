// Package statectx implements the Static Task Context Store (C9): a
// per-task persistent key-value map backed by a single JSON file, exposed
// through an observable proxy whose writes are debounce-coalesced to disk
// (§3, §4.8, I9).
package statectx

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/cameleer-io/cameleer/internal/cameleer/logging"
)

// Store owns the single JSON file and the in-memory map it mirrors. Shape on
// disk: { "<ClassName>_<TaskName>": { <string>: <any> } } (§6 Persisted
// state).
type Store struct {
	mu                sync.Mutex
	path              string
	data              map[string]map[string]any
	serializeInterval time.Duration
	timer             *time.Timer
	logger            logging.Logger
	closed            bool
}

// Load performs a best-effort read of path: a missing or unreadable file
// yields an empty map rather than failing engine startup (§4.8).
func Load(path string, serializeInterval time.Duration, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	data := map[string]map[string]any{}
	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &data); err != nil {
			logger.Warn("statectx", "static context file is not valid JSON, starting empty", "path", path, "err", err.Error())
			data = map[string]map[string]any{}
		}
	}
	return &Store{
		path:              path,
		data:              data,
		serializeInterval: serializeInterval,
		logger:            logger,
	}
}

// For returns the observable proxy for one task's bucket, keyed
// "<ClassName>_<TaskName>", creating the bucket on first access.
func (s *Store) For(key string) *TaskContext {
	s.mu.Lock()
	if _, ok := s.data[key]; !ok {
		s.data[key] = map[string]any{}
	}
	s.mu.Unlock()
	return &TaskContext{store: s, key: key}
}

// scheduleSave implements the debounce: a pending timer is cancelled and
// replaced on every call, so a burst of writes collapses to one disk write
// fired serializeInterval after the last write in the burst (I9, P6).
func (s *Store) scheduleSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.serializeInterval, s.saveNow)
}

func (s *Store) saveNow() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.writeToDisk(snap)
}

func (s *Store) snapshotLocked() map[string]map[string]any {
	out := make(map[string]map[string]any, len(s.data))
	for k, v := range s.data {
		inner := make(map[string]any, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		out[k] = inner
	}
	return out
}

func (s *Store) writeToDisk(data map[string]map[string]any) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		s.logger.Error("statectx", "failed to marshal static context", "err", err.Error())
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		s.logger.Error("statectx", "failed to write static context file", "path", s.path, "err", err.Error())
	}
}

// Shutdown cancels any pending debounced save and performs one final
// synchronous save (§4.8).
func (s *Store) Shutdown() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.closed = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.writeToDisk(snap)
}
