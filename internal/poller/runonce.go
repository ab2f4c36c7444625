package poller

import (
	"context"
	"strings"
	"sync"

	apperrors "edgar-tracker/internal/errors"
	"edgar-tracker/internal/models"
)

// RunResult summarizes a one-shot refresh.
type RunResult struct {
	Polled     []string
	Skipped    []string // no CIK, held back by failure backoff, or already in flight
	NewFilings int
	Failed     []string
}

// RunOnce performs a single refresh pass without the background loop:
// the given symbols, or the whole watchlist when none are given. Used by
// the CLI refresh command. The same due rules apply as for a manual
// refresh trigger, including failure backoff (unless configured to
// bypass) and the shared source throttle.
func (s *Scheduler) RunOnce(ctx context.Context, symbols ...string) (*RunResult, error) {
	if err := s.ensureStates(ctx); err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		targets = append(targets, sym)
	}

	now := s.now()
	result := &RunResult{}

	s.mu.Lock()
	if len(targets) == 0 {
		for sym := range s.states {
			targets = append(targets, sym)
		}
	}
	var dispatched []string
	for _, sym := range targets {
		st, ok := s.states[sym]
		if !ok {
			result.Skipped = append(result.Skipped, sym)
			continue
		}
		if st.inFlight {
			result.Skipped = append(result.Skipped, sym)
			continue
		}
		if st.cik == "" {
			st.reported = true
			result.Skipped = append(result.Skipped, sym)
			continue
		}
		st.manual = true
		if !s.isDue(st, now) {
			st.manual = false
			result.Skipped = append(result.Skipped, sym)
			continue
		}
		st.manual = false
		st.inFlight = true
		st.phase = PhaseDue
		dispatched = append(dispatched, sym)
	}
	s.mu.Unlock()

	var batch sync.WaitGroup
	for _, sym := range dispatched {
		batch.Add(1)
		s.wg.Add(1)
		go func(sym string) {
			defer batch.Done()
			s.slots <- struct{}{}
			s.runCycle(ctx, sym)
		}(sym)
	}
	batch.Wait()

	s.mu.Lock()
	for _, sym := range dispatched {
		st := s.states[sym]
		result.Polled = append(result.Polled, sym)
		result.NewFilings += st.lastNew
		if failureOutcome(st.poll.LastOutcome) || st.poll.LastOutcome == models.OutcomeNotFound {
			result.Failed = append(result.Failed, sym)
		}
	}
	s.mu.Unlock()

	return result, nil
}

// ensureStates loads ticker state from the store when the background
// loop has not been started.
func (s *Scheduler) ensureStates(ctx context.Context) error {
	s.mu.Lock()
	loaded := len(s.states) > 0
	s.mu.Unlock()
	if loaded {
		return nil
	}

	tickers, err := s.store.ListTickers(ctx, true)
	if err != nil {
		return apperrors.Wrap(err, "loading watchlist")
	}
	persisted, err := s.store.LoadPollStates(ctx)
	if err != nil {
		return apperrors.Wrap(err, "loading poll state")
	}

	s.mu.Lock()
	for _, t := range tickers {
		if _, ok := s.states[t.Symbol]; ok {
			continue
		}
		st := &tickerState{phase: PhaseIdle, cik: t.CIK}
		if p, ok := persisted[t.Symbol]; ok {
			st.poll = p
		} else {
			st.poll = models.PollState{Symbol: t.Symbol}
		}
		s.states[t.Symbol] = st
	}
	s.mu.Unlock()
	return nil
}
