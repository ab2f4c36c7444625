package poller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"edgar-tracker/internal/config"
	"edgar-tracker/internal/diff"
	apperrors "edgar-tracker/internal/errors"
	"edgar-tracker/internal/logging"
	"edgar-tracker/internal/models"
	"edgar-tracker/internal/notify"
	"edgar-tracker/internal/source"
	"edgar-tracker/internal/store"
)

// Phase is the position of a ticker in its poll cycle.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseDue        Phase = "DUE"
	PhaseFetching   Phase = "FETCHING"
	PhaseDiffing    Phase = "DIFFING"
	PhasePersisting Phase = "PERSISTING"
	PhaseAlerting   Phase = "ALERTING"
	PhaseErrored    Phase = "ERRORED"
)

// tickerState is the scheduler's in-memory view of one ticker. The
// durable part (PollState) is reloaded from the store on startup.
type tickerState struct {
	poll     models.PollState
	phase    Phase
	cik      string
	inFlight bool
	manual   bool // forced due by a refresh trigger
	reported bool // missing-CIK skip already logged
	lastNew  int  // new filings from the most recent cycle
}

// Scheduler decides when each watched ticker is due, runs poll cycles
// through a bounded worker pool, and owns all per-ticker retry state.
// Cycles for distinct tickers run concurrently; a ticker already in
// flight is skipped by the due-check until its cycle returns to idle.
type Scheduler struct {
	store    store.FilingStore
	source   source.Source
	cfg      config.PollingConfig
	backoff  Backoff
	notifier notify.Notifier
	logger   zerolog.Logger

	mu     sync.Mutex
	states map[string]*tickerState

	refreshCh chan string // symbol, or "" for the whole watchlist
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	slots     chan struct{}
	now       func() time.Time
}

// NewScheduler creates a scheduler. The notifier may be nil.
func NewScheduler(st store.FilingStore, src source.Source, cfg config.PollingConfig, notifier notify.Notifier, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:  st,
		source: src,
		cfg:    cfg,
		backoff: Backoff{
			Base:              cfg.Interval,
			UnavailableFactor: cfg.UnavailableFactor,
			RateLimitFactor:   cfg.RateLimitFactor,
			Cap:               cfg.BackoffCap,
		},
		notifier:  notifier,
		logger:    logger,
		states:    make(map[string]*tickerState),
		refreshCh: make(chan string, 16),
		stopCh:    make(chan struct{}),
		slots:     make(chan struct{}, cfg.MaxWorkers),
		now:       time.Now,
	}
}

// Start reconstructs per-ticker state from the store and launches the
// due-check loop. Tickers without persisted state are due immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.ensureStates(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.mu.Lock()
	n := len(s.states)
	s.mu.Unlock()
	s.logger.Info().Int("tickers", n).Msg("Scheduler started")
	return nil
}

// Stop shuts the scheduler down, waiting up to the configured grace
// period for in-flight cycles to finish their current stage.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 30 * time.Second
	}
	select {
	case <-done:
	case <-time.After(grace):
		s.logger.Warn().Dur("grace", grace).Msg("Shutdown grace period elapsed with cycles still in flight")
	}
}

// TriggerRefresh forces a ticker (or, with an empty symbol, every
// watched ticker) into the due set immediately. Failure backoff still
// applies unless configured otherwise; the shared source throttle always
// applies.
func (s *Scheduler) TriggerRefresh(symbol string) error {
	// The refresh channel is buffered, so the stop check has to come
	// first or a post-shutdown trigger could still be accepted.
	select {
	case <-s.stopCh:
		return apperrors.ErrShuttingDown
	default:
	}
	select {
	case s.refreshCh <- symbol:
		return nil
	case <-s.stopCh:
		return apperrors.ErrShuttingDown
	}
}

// AddTicker registers a new watched ticker and schedules an immediate
// one-shot refresh for it.
func (s *Scheduler) AddTicker(ctx context.Context, symbol, cik string) (*models.Ticker, error) {
	ticker := &models.Ticker{Symbol: symbol, CIK: cik, Watched: true}
	if err := s.store.UpsertTicker(ctx, ticker); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.states[ticker.Symbol]; !ok {
		s.states[ticker.Symbol] = &tickerState{
			phase: PhaseIdle,
			poll:  models.PollState{Symbol: ticker.Symbol},
		}
	}
	s.states[ticker.Symbol].cik = ticker.CIK
	s.states[ticker.Symbol].manual = true
	s.mu.Unlock()

	return ticker, nil
}

// TickerStatus is one row of the scheduler status snapshot.
type TickerStatus struct {
	Symbol      string
	Phase       Phase
	NextPoll    time.Time
	LastOutcome models.PollOutcome
	LastError   string
	Failures    int
	Degraded    bool
}

// Status is the scheduler snapshot consumed by the status bar.
type Status struct {
	Tickers       []TickerStatus
	PendingAlerts int
}

// Status returns a point-in-time snapshot of every tracked ticker plus
// the unread alert count. Usable without Start: state is reloaded from
// the store on demand.
func (s *Scheduler) Status(ctx context.Context) (*Status, error) {
	if err := s.ensureStates(ctx); err != nil {
		return nil, err
	}

	pending, err := s.store.UnreadAlertCount(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	rows := make([]TickerStatus, 0, len(s.states))
	for symbol, st := range s.states {
		rows = append(rows, TickerStatus{
			Symbol:      symbol,
			Phase:       st.phase,
			NextPoll:    st.poll.NextEligible,
			LastOutcome: st.poll.LastOutcome,
			LastError:   st.poll.LastError,
			Failures:    st.poll.ConsecutiveFailures,
			Degraded:    st.poll.Degraded(s.cfg.MaxFailures),
		})
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return &Status{Tickers: rows, PendingAlerts: pending}, nil
}

// loop is the fixed-tick due check.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	tick := s.cfg.Tick
	if tick <= 0 {
		tick = 5 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case symbol := <-s.refreshCh:
			s.applyRefresh(symbol)
			s.dispatchDue(ctx)
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// applyRefresh marks the requested tickers as manually due.
func (s *Scheduler) applyRefresh(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if symbol != "" {
		if st, ok := s.states[symbol]; ok {
			st.manual = true
		}
		return
	}
	for _, st := range s.states {
		st.manual = true
	}
}

// dispatchDue scans for due tickers and hands them to the worker pool.
// The pool bounds in-flight cycles; the shared source throttle
// serializes the actual network requests underneath it.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []string
	var unpollable []string
	for symbol, st := range s.states {
		if st.inFlight {
			continue
		}
		if st.cik == "" {
			// Never enters Due. Reported once, then ignored until the
			// user supplies a registry identifier.
			st.manual = false
			if !st.reported {
				st.reported = true
				unpollable = append(unpollable, symbol)
			}
			continue
		}
		if s.isDue(st, now) {
			due = append(due, symbol)
		}
	}
	// Oldest next-eligible first, so starved tickers win slots.
	sort.Slice(due, func(i, j int) bool {
		return s.states[due[i]].poll.NextEligible.Before(s.states[due[j]].poll.NextEligible)
	})
	var dispatched []string
	for _, symbol := range due {
		select {
		case s.slots <- struct{}{}:
			st := s.states[symbol]
			st.inFlight = true
			st.manual = false
			st.phase = PhaseDue
			dispatched = append(dispatched, symbol)
		default:
			// Pool full; remaining tickers stay due for the next tick.
		}
	}
	s.mu.Unlock()

	for _, symbol := range unpollable {
		logger := logging.WithTicker(s.logger, symbol)
		logger.Warn().Msg("Ticker has no registry identifier; it will not be polled until one is set")
	}
	for _, symbol := range dispatched {
		s.wg.Add(1)
		go s.runCycle(ctx, symbol)
	}
}

// isDue decides eligibility under s.mu. Manual refresh bypasses the
// normal interval but not failure backoff, unless configured to.
func (s *Scheduler) isDue(st *tickerState, now time.Time) bool {
	if st.manual {
		if st.poll.ConsecutiveFailures == 0 || s.cfg.ManualBypassesBackoff {
			return true
		}
		return !now.Before(st.poll.NextEligible)
	}
	return !now.Before(st.poll.NextEligible)
}

// runCycle executes one fetch, diff, persist, alert cycle for a ticker.
// Every error is recorded into poll state here; nothing escapes to the
// loop or to other tickers.
func (s *Scheduler) runCycle(ctx context.Context, symbol string) {
	defer s.wg.Done()
	defer func() {
		<-s.slots
		s.mu.Lock()
		st := s.states[symbol]
		st.inFlight = false
		st.phase = PhaseIdle
		s.mu.Unlock()
	}()

	start := s.now()
	logger := logging.WithTicker(s.logger, symbol)

	ticker, err := s.store.GetTicker(ctx, symbol)
	if err != nil {
		s.recordOutcome(ctx, symbol, models.OutcomeStoreError, err, 0, start)
		return
	}
	if ticker.CIK == "" {
		// Due selection filters these out; the guard covers a CIK
		// cleared in the store after this cycle was dispatched.
		logger.Debug().Msg("Registry identifier disappeared; skipping cycle")
		return
	}

	s.setPhase(symbol, PhaseFetching)
	listed, err := s.source.ListFilings(ctx, *ticker)
	if err != nil {
		s.recordOutcome(ctx, symbol, outcomeForError(err), err, 0, start)
		return
	}

	s.setPhase(symbol, PhaseDiffing)
	known, err := s.store.KnownFilingKeys(ctx, symbol)
	if err != nil {
		s.recordOutcome(ctx, symbol, models.OutcomeStoreError, err, 0, start)
		return
	}
	fresh := diff.New(listed, known)

	s.setPhase(symbol, PhasePersisting)
	created := make([]models.Filing, 0, len(fresh))
	for i := range fresh {
		wasNew, err := s.store.UpsertFiling(ctx, &fresh[i])
		if err != nil {
			// Abort before alert fan-out. Filings persisted so far are
			// durable with their alerts already committed atomically; the
			// remainder is re-detected next cycle.
			s.recordOutcome(ctx, symbol, models.OutcomeStoreError, err, len(created), start)
			return
		}
		if wasNew {
			logging.LogNewFiling(logger, symbol, fresh[i].FilingID, string(fresh[i].Type), fresh[i].Title)
			created = append(created, fresh[i])
		}
	}

	s.setPhase(symbol, PhaseAlerting)
	// Alert records were created inside UpsertFiling; this stage is
	// best-effort fan-out to external channels.
	if s.notifier != nil && len(created) > 0 {
		if err := s.notifier.NotifyNewFilings(ctx, created); err != nil {
			logger.Warn().Err(err).Msg("Notification delivery failed")
		}
	}

	s.recordOutcome(ctx, symbol, models.OutcomeSuccess, nil, len(created), start)
}

func (s *Scheduler) setPhase(symbol string, phase Phase) {
	s.mu.Lock()
	if st, ok := s.states[symbol]; ok {
		st.phase = phase
	}
	s.mu.Unlock()
}

// recordOutcome updates and persists poll state after a cycle.
func (s *Scheduler) recordOutcome(ctx context.Context, symbol string, outcome models.PollOutcome, cause error, newFilings int, start time.Time) {
	now := s.now()

	s.mu.Lock()
	st, ok := s.states[symbol]
	if !ok {
		s.mu.Unlock()
		return
	}
	if outcome != models.OutcomeSuccess {
		st.phase = PhaseErrored
	}

	st.poll.LastAttempt = now
	st.poll.LastOutcome = outcome
	st.lastNew = newFilings
	if failureOutcome(outcome) {
		st.poll.ConsecutiveFailures++
	} else if outcome == models.OutcomeSuccess {
		st.poll.ConsecutiveFailures = 0
	}
	if cause != nil {
		st.poll.LastError = cause.Error()
	} else {
		st.poll.LastError = ""
	}
	if outcome == models.OutcomeNotFound {
		// Permanent for this ticker until the user corrects the CIK;
		// retried only at the capped interval, never counted as failure.
		st.poll.NextEligible = now.Add(s.backoff.Cap)
	} else {
		st.poll.NextEligible = now.Add(s.backoff.NextDelay(outcome, st.poll.ConsecutiveFailures))
	}
	snapshot := st.poll
	degraded := st.poll.Degraded(s.cfg.MaxFailures)
	s.mu.Unlock()

	logger := logging.WithTicker(s.logger, symbol)
	logging.LogPoll(logger, symbol, string(outcome), newFilings, now.Sub(start))
	if degraded && failureOutcome(outcome) {
		logger.Warn().
			Int("failures", snapshot.ConsecutiveFailures).
			Time("next_poll", snapshot.NextEligible).
			Str("last_error", snapshot.LastError).
			Msg("Ticker degraded")
	}

	if err := s.store.SavePollState(ctx, &snapshot); err != nil {
		logger.Error().Err(err).Msg("Failed to persist poll state")
	}
}

// outcomeForError maps source errors onto poll outcomes.
func outcomeForError(err error) models.PollOutcome {
	switch {
	case apperrors.Is(err, apperrors.ErrSourceRateLimited):
		return models.OutcomeRateLimited
	case apperrors.Is(err, apperrors.ErrSourceNotFound):
		return models.OutcomeNotFound
	case apperrors.Is(err, apperrors.ErrStoreWrite):
		return models.OutcomeStoreError
	default:
		return models.OutcomeUnavailable
	}
}
