package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/finfolio/internal/clientdata"
	"github.com/aristath/finfolio/internal/domain"
	"github.com/rs/zerolog"
)

const maxPrefixLength = 64

type pendingSearch struct {
	seq    uint64
	cancel context.CancelCauseFunc
}

// Suggester debounces search-as-you-type per session. A call waits for the quiet
// window; a newer call for the same session supersedes it, and the older call
// returns domain.ErrSuperseded even if its search already finished.
type Suggester struct {
	searcher      domain.SymbolSearcher
	cache         *clientdata.Repository
	quiet         time.Duration
	searchTimeout time.Duration
	log           zerolog.Logger

	mu       sync.Mutex
	seq      uint64
	sessions map[string]*pendingSearch
}

// NewSuggester creates a suggester. cache may be nil.
func NewSuggester(searcher domain.SymbolSearcher, cache *clientdata.Repository, quiet, searchTimeout time.Duration, log zerolog.Logger) *Suggester {
	if quiet < 0 {
		quiet = 0
	}
	if searchTimeout <= 0 {
		searchTimeout = 10 * time.Second
	}
	return &Suggester{
		searcher:      searcher,
		cache:         cache,
		quiet:         quiet,
		searchTimeout: searchTimeout,
		log:           log.With().Str("service", "suggestions").Logger(),
		sessions:      make(map[string]*pendingSearch),
	}
}

// Suggest returns matches for prefix once the session has been quiet long enough.
// An empty prefix yields no suggestions without calling upstream.
// session names the typing client; callers must supply it.
func (s *Suggester) Suggest(ctx context.Context, session, prefix string) ([]domain.SymbolSuggestion, error) {
	if session == "" {
		return nil, domain.NewValidationError("session", "is required")
	}
	prefix = strings.TrimSpace(prefix)
	if len(prefix) > maxPrefixLength {
		return nil, domain.NewValidationError("q", "too long")
	}

	reqCtx, seq := s.begin(ctx, session)
	defer s.finish(session, seq)

	if prefix == "" {
		return []domain.SymbolSuggestion{}, nil
	}

	timer := time.NewTimer(s.quiet)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-reqCtx.Done():
		return nil, cancelCause(reqCtx)
	}

	key := strings.ToUpper(prefix)
	if results, ok := s.cached(key); ok {
		return results, nil
	}

	searchCtx, cancel := context.WithTimeout(reqCtx, s.searchTimeout)
	defer cancel()

	results, err := s.searcher.SearchSymbols(searchCtx, prefix)

	// Only the latest query is ever delivered
	if reqCtx.Err() != nil {
		return nil, cancelCause(reqCtx)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
		}
		return nil, fmt.Errorf("search %q: %w", prefix, err)
	}
	if results == nil {
		results = []domain.SymbolSuggestion{}
	}

	if s.cache != nil {
		if err := s.cache.Store(clientdata.TableSymbolSearch, key, results, clientdata.TTLSymbolSearch); err != nil {
			s.log.Warn().Err(err).Str("prefix", prefix).Msg("Failed to cache suggestions")
		}
	}
	return results, nil
}

// begin registers a new request for session and supersedes the previous one
func (s *Suggester) begin(ctx context.Context, session string) (context.Context, uint64) {
	reqCtx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.sessions[session]; ok {
		prev.cancel(domain.ErrSuperseded)
	}
	s.seq++
	s.sessions[session] = &pendingSearch{seq: s.seq, cancel: cancel}
	return reqCtx, s.seq
}

func (s *Suggester) finish(session string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.sessions[session]; ok && p.seq == seq {
		p.cancel(nil)
		delete(s.sessions, session)
	}
}

func (s *Suggester) pending(session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[session]
	return ok
}

func (s *Suggester) cached(key string) ([]domain.SymbolSuggestion, bool) {
	if s.cache == nil {
		return nil, false
	}
	var results []domain.SymbolSuggestion
	ok, err := s.cache.GetIfFresh(clientdata.TableSymbolSearch, key, &results)
	if err != nil {
		s.log.Warn().Err(err).Str("prefix", key).Msg("Failed to read cached suggestions")
		return nil, false
	}
	if ok && results == nil {
		results = []domain.SymbolSuggestion{}
	}
	return results, ok
}

func cancelCause(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, domain.ErrSuperseded) {
		return domain.ErrSuperseded
	}
	return ctx.Err()
}
