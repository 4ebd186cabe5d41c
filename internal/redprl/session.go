package redprl

// session.go: per-document result caches and the refresh pipeline that feeds them.

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrSuperseded is returned by Refresh when a newer refresh of the same
// document started before this one finished. Its result is discarded.
var ErrSuperseded = errors.New("refresh superseded by a newer request")

// snapshot is immutable once published.
type snapshot struct {
	diagnostics map[string][]Diagnostic // by file URI
	lenses      map[string][]Lens       // by document URI
	symbols     map[string][]Symbol     // by document URI
	owner       map[string]string       // diagnostics URI -> document URI that published it
}

func emptySnapshot() *snapshot {
	return &snapshot{
		diagnostics: make(map[string][]Diagnostic),
		lenses:      make(map[string][]Lens),
		symbols:     make(map[string][]Symbol),
		owner:       make(map[string]string),
	}
}

func (s *snapshot) clone() *snapshot {
	return &snapshot{
		diagnostics: maps.Clone(s.diagnostics),
		lenses:      maps.Clone(s.lenses),
		symbols:     maps.Clone(s.symbols),
		owner:       maps.Clone(s.owner),
	}
}

// Update describes what one successful refresh changed.
type Update struct {
	Document   Document
	Generation uint64
	Result     *Result
	Cleared    []string // diagnostics URIs that no longer have entries
}

// Session owns the result caches. Readers always see a complete snapshot;
// writers replace a document's entries wholesale.
type Session struct {
	runnerMu sync.RWMutex
	runner   Runner

	cache  *ResponseCache
	logger zerolog.Logger

	mu          sync.Mutex // serializes writers and guards generations
	generations map[string]uint64
	snap        atomic.Pointer[snapshot]

	warnedUnavailable atomic.Bool
}

type SessionOption func(*Session)

func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

func WithResponseCache(c *ResponseCache) SessionOption {
	return func(s *Session) { s.cache = c }
}

func NewSession(runner Runner, opts ...SessionOption) *Session {
	s := &Session{
		runner:      runner,
		logger:      zerolog.Nop(),
		generations: make(map[string]uint64),
	}
	s.snap.Store(emptySnapshot())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRunner swaps the runner used by later refreshes.
func (s *Session) SetRunner(r Runner) {
	s.runnerMu.Lock()
	defer s.runnerMu.Unlock()
	s.runner = r
}

func (s *Session) currentRunner() Runner {
	s.runnerMu.RLock()
	defer s.runnerMu.RUnlock()
	return s.runner
}

// Refresh runs the binary on doc and, on success, replaces everything doc
// previously contributed. A failed run leaves the caches untouched.
func (s *Session) Refresh(ctx context.Context, doc Document) (*Update, error) {
	if doc.URI == "" {
		return nil, fmt.Errorf("refresh: document has no URI")
	}
	gen := s.nextGeneration(doc.URI)

	response, err := s.run(ctx, doc)
	if err != nil {
		if errors.Is(err, ErrProcessUnavailable) && s.warnedUnavailable.CompareAndSwap(false, true) {
			s.logger.Warn().Err(err).Msg("redprl binary is not available; configure redprl.path")
		}
		return nil, err
	}

	res := Classifier{BaseDir: workDir(doc)}.Classify(ParseMessages(response))

	cleared, ok := s.apply(doc.URI, gen, res)
	if !ok {
		s.logger.Debug().Str("uri", doc.URI).Uint64("generation", gen).Msg("discarding stale refresh")
		return nil, ErrSuperseded
	}
	s.logger.Debug().
		Str("uri", doc.URI).
		Int("files", len(res.Diagnostics)).
		Int("lenses", len(res.Lenses)).
		Int("symbols", len(res.Symbols)).
		Msg("refresh applied")
	return &Update{Document: doc, Generation: gen, Result: res, Cleared: cleared}, nil
}

func (s *Session) run(ctx context.Context, doc Document) (string, error) {
	runner := s.currentRunner()
	if runner == nil {
		return "", fmt.Errorf("%w: no runner configured", ErrProcessUnavailable)
	}
	keyer, cacheable := runner.(cacheKeyer)
	cacheable = cacheable && s.cache != nil
	var key string
	if cacheable {
		key = keyer.CacheKey(doc)
		if response, ok := s.cache.Get(key); ok {
			s.logger.Debug().Str("uri", doc.URI).Msg("response cache hit")
			return response, nil
		}
	}
	response, err := runner.Run(ctx, doc)
	if err != nil {
		return "", err
	}
	if cacheable {
		if err := s.cache.Put(key, doc.Path, response); err != nil {
			s.logger.Warn().Err(err).Msg("store cached response")
		}
	}
	return response, nil
}

func (s *Session) nextGeneration(uri string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[uri]++
	return s.generations[uri]
}

// apply publishes a new snapshot with doc's entries replaced by res.
func (s *Session) apply(doc string, gen uint64, res *Result) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations[doc] != gen {
		return nil, false
	}

	next := s.snap.Load().clone()
	cleared := dropOwned(next, doc, res.Diagnostics)
	for uri, diags := range res.Diagnostics {
		next.diagnostics[uri] = diags
		next.owner[uri] = doc
	}
	next.lenses[doc] = res.Lenses
	next.symbols[doc] = res.Symbols
	s.snap.Store(next)
	return cleared, true
}

// dropOwned removes diagnostics doc published earlier that keep is not
// about to overwrite, and returns their URIs.
func dropOwned(snap *snapshot, doc string, keep map[string][]Diagnostic) []string {
	var cleared []string
	for uri, owner := range snap.owner {
		if owner != doc {
			continue
		}
		if _, ok := keep[uri]; ok {
			continue
		}
		delete(snap.diagnostics, uri)
		delete(snap.owner, uri)
		cleared = append(cleared, uri)
	}
	slices.Sort(cleared)
	return cleared
}

// Forget drops everything doc contributed and returns the cleared
// diagnostics URIs. In-flight refreshes of doc are discarded.
func (s *Session) Forget(doc string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generations[doc]++
	next := s.snap.Load().clone()
	cleared := dropOwned(next, doc, nil)
	delete(next.lenses, doc)
	delete(next.symbols, doc)
	s.snap.Store(next)
	return cleared
}

// ForgetCached drops stored tool responses for the document at path, so
// the next refresh runs the binary again.
func (s *Session) ForgetCached(path string) (int, error) {
	return s.cache.Remove(path)
}

// Diagnostics returns the diagnostics currently held for a file URI.
func (s *Session) Diagnostics(uri string) []Diagnostic {
	return s.snap.Load().diagnostics[uri]
}

// Lenses reports the lenses of the last successful refresh of doc.
func (s *Session) Lenses(doc string) ([]Lens, bool) {
	l, ok := s.snap.Load().lenses[doc]
	return l, ok
}

// Symbols reports the symbols of the last successful refresh of doc.
func (s *Session) Symbols(doc string) ([]Symbol, bool) {
	sym, ok := s.snap.Load().symbols[doc]
	return sym, ok
}

// Has reports whether doc has been refreshed successfully.
func (s *Session) Has(doc string) bool {
	_, ok := s.snap.Load().symbols[doc]
	return ok
}
