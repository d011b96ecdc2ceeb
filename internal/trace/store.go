package trace

import (
	"context"
	"errors"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store keeps recent traces in an expiring cache and, when a repository
// is configured, persists finished traces.
//
// Thread-safe.
type Store struct {
	cache     *gocache.Cache
	repo      Repository
	retention time.Duration
	logger    Logger
}

// NewStore creates a trace store. Cached traces expire after retention.
// repo may be nil to keep traces in memory only.
func NewStore(retention time.Duration, repo Repository) *Store {
	cleanup := retention / 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Store{
		cache:     gocache.New(retention, cleanup),
		repo:      repo,
		retention: retention,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Save caches a copy of t and persists it once finished.
func (s *Store) Save(ctx context.Context, t *Trace) error {
	cpy := t.Clone()
	s.cache.Set(cpy.RunID, cpy, gocache.DefaultExpiration)

	if s.repo == nil || cpy.Finish == nil {
		return nil
	}
	if err := s.repo.Save(ctx, cpy); err != nil {
		s.logger.Error("failed to persist trace", "run_id", cpy.RunID, "error", err)
		return err
	}
	return nil
}

// Get returns a copy of the trace for runID, reading the cache first.
func (s *Store) Get(ctx context.Context, runID string) (*Trace, error) {
	if v, ok := s.cache.Get(runID); ok {
		return v.(*Trace).Clone(), nil
	}
	if s.repo == nil {
		return nil, ErrTraceNotFound
	}
	return s.repo.Get(ctx, runID)
}

// ListByWorkflow returns up to limit traces of a workflow, newest first.
// Cached traces are merged with persisted ones.
func (s *Store) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*Trace, error) {
	byID := make(map[string]*Trace)
	for _, item := range s.cache.Items() {
		t := item.Object.(*Trace)
		if t.WorkflowID == workflowID {
			byID[t.RunID] = t.Clone()
		}
	}

	if s.repo != nil {
		stored, err := s.repo.ListByWorkflow(ctx, workflowID, limit)
		if err != nil && !errors.Is(err, ErrTraceNotFound) {
			return nil, err
		}
		for _, t := range stored {
			if _, ok := byID[t.RunID]; !ok {
				byID[t.RunID] = t
			}
		}
	}

	out := make([]*Trace, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prune deletes persisted traces older than the retention period.
func (s *Store) Prune(ctx context.Context, now time.Time) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	n, err := s.repo.DeleteBefore(ctx, now.Add(-s.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("pruned traces", "count", n)
	}
	return n, nil
}
