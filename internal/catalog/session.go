package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketplace-catalog/internal/catalogapi"
	"marketplace-catalog/internal/category"
	"marketplace-catalog/internal/logger"
	"marketplace-catalog/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrStale is returned by Refresh when a newer refresh settled first and
	// this result was discarded.
	ErrStale = errors.New("catalog: stale response discarded")
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("catalog: session closed")
)

// Source selects where subcategories come from. A session sticks to one.
type Source string

const (
	// SourceEmbedded reads subcategories embedded in GET /api/categories.
	SourceEmbedded Source = "embedded"
	// SourceFlat reads them from GET /api/subcategories.
	SourceFlat Source = "flat"
)

func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case "", SourceEmbedded:
		return SourceEmbedded, nil
	case SourceFlat:
		return SourceFlat, nil
	default:
		return "", fmt.Errorf("unknown category source %q", s)
	}
}

type State struct {
	Loading       bool      `json:"loading"`
	Err           string    `json:"error,omitempty"`
	FetchedAt     time.Time `json:"fetchedAt"`
	Seq           uint64    `json:"seq"`
	Source        Source    `json:"source"`
	Categories    int       `json:"categories"`
	Subcategories int       `json:"subcategories"`
}

type Stats struct {
	Refreshes    uint64        `json:"refreshes"`
	Failures     uint64        `json:"failures"`
	Stale        uint64        `json:"stale"`
	LastDuration time.Duration `json:"lastDurationNs"`
}

type Option func(*Session)

func WithSource(src Source) Option {
	return func(s *Session) { s.source = src }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session owns the category index of one view. It is created by the caller,
// refreshed on demand and torn down with Close.
type Session struct {
	client catalogapi.Client
	source Source
	now    func() time.Time

	mu        sync.RWMutex
	index     *category.Index
	err       string
	fetchedAt time.Time
	issued    uint64 // last sequence token handed out
	settled   uint64 // newest token whose outcome was recorded
	applied   uint64 // token of the index currently held
	inflight  int
	closed    bool

	refreshes    metrics.Counter
	failures     metrics.Counter
	stale        metrics.Counter
	lastDuration metrics.LastDuration
}

func NewSession(client catalogapi.Client, opts ...Option) *Session {
	s := &Session{
		client: client,
		source: SourceEmbedded,
		now:    time.Now,
		index:  category.Empty(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh fetches the collection and swaps in a new index. Overlapping
// refreshes are allowed; a result older than one already settled is dropped
// with ErrStale. On failure the previous index is kept and the error message
// is recorded in State.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.issued++
	seq := s.issued
	s.inflight++
	s.mu.Unlock()

	log := logger.Named(ctx, "catalog").With(
		zap.Uint64("seq", seq),
		zap.String("source", string(s.source)),
	)
	log.Info("Refresh started")

	s.refreshes.Inc()
	timer := metrics.StartTimer()
	idx, fetchErr := s.fetch(ctx)
	s.lastDuration.Observe(timer.Duration())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--

	if s.closed {
		return ErrClosed
	}

	if seq < s.settled {
		s.stale.Inc()
		log.Warn("Refresh result discarded", zap.Uint64("settled", s.settled))
		return ErrStale
	}
	s.settled = seq

	if fetchErr != nil {
		s.failures.Inc()
		s.err = fetchErr.Error()
		log.Error("Refresh failed, keeping previous index", zap.Error(fetchErr))
		return fetchErr
	}

	s.index = idx
	s.applied = seq
	s.err = ""
	s.fetchedAt = s.now()

	cats, subs := idx.Len()
	if orphans := idx.Orphans(); len(orphans) > 0 {
		log.Warn("Subcategories without a known category", zap.Int("count", len(orphans)))
	}
	log.Info("Refresh success", zap.Int("categories", cats), zap.Int("subcategories", subs))
	return nil
}

func (s *Session) fetch(ctx context.Context) (*category.Index, error) {
	if s.source != SourceFlat {
		cats, err := s.client.Categories(ctx)
		if err != nil {
			return nil, err
		}
		return category.Build(cats), nil
	}

	var (
		cats []category.Category
		subs []category.Subcategory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cats, err = s.client.Categories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.client.AllSubcategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return category.FromFlat(cats, subs), nil
}

// Index returns the current index. It is never nil.
func (s *Session) Index() *category.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.index == nil {
		return category.Empty()
	}
	return s.index
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Loading:   s.inflight > 0,
		Err:       s.err,
		FetchedAt: s.fetchedAt,
		Seq:       s.applied,
		Source:    s.source,
	}
	if !s.closed && s.index != nil {
		st.Categories, st.Subcategories = s.index.Len()
	}
	return st
}

func (s *Session) Stats() Stats {
	return Stats{
		Refreshes:    s.refreshes.Load(),
		Failures:     s.failures.Load(),
		Stale:        s.stale.Load(),
		LastDuration: s.lastDuration.Load(),
	}
}

// ScopedSubcategories asks the backend for one category's subcategories
// instead of filtering the held index. The held index is left alone.
func (s *Session) ScopedSubcategories(ctx context.Context, categoryID string) ([]category.Subcategory, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	subs, err := s.client.SubcategoriesOf(ctx, categoryID)
	if err != nil {
		logger.Named(ctx, "catalog").Error("scoped subcategory fetch failed",
			zap.String("category_id", categoryID),
			zap.Error(err),
		)
		return nil, err
	}
	return category.NormalizeOwners(subs, categoryID), nil
}

// Close discards the index. Refreshes still in flight are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.index = nil
}
