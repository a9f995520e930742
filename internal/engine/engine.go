package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/rules"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/logger"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/metrics"
)

// Run outcomes recorded in a RunSummary.
const (
	OutcomeGameOver    = "gameover"
	OutcomeAbandoned   = "abandoned"
	OutcomeInterrupted = "interrupted"
)

// RunSummary is the audit record of one finished run.
type RunSummary struct {
	RunID                string        `json:"run_id"`
	ContentVersion       string        `json:"content_version"`
	Outcome              string        `json:"outcome"`
	StartedAt            time.Time     `json:"started_at"`
	EndedAt              time.Time     `json:"ended_at"`
	PlayTime             time.Duration `json:"play_time"`
	Level                int           `json:"level"`
	Day                  int           `json:"day"`
	Coins                int           `json:"coins"`
	Reputation           int           `json:"reputation"`
	CompletedOrders      int           `json:"completed_orders"`
	FailedOrders         int           `json:"failed_orders"`
	PerfectTreatments    int           `json:"perfect_treatments"`
	MaxCombo             int           `json:"max_combo"`
	AchievementsUnlocked int           `json:"achievements_unlocked"`
}

// Options configures an Engine. Zero values pick production defaults.
type Options struct {
	Clock         func() time.Time
	Rand          patient.Picker
	Metrics       *metrics.Collector
	Resolution    time.Duration
	OnRunFinished func(RunSummary)
}

// Engine is the session controller. It is the single owner of the
// GameState: every operation takes the lock, runs a pure reducer, and
// journals the difference. Operations report whether they applied.
type Engine struct {
	mu      sync.Mutex
	state   clinic.GameState
	tables  *content.Tables
	factory *patient.Factory
	sched   *Scheduler

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	now      func() time.Time

	runID      string
	runStarted time.Time
	runClosed  bool

	baseCtx      context.Context
	driverCancel context.CancelFunc
	driverGen    uint64
	resolution   time.Duration

	onRunFinished func(RunSummary)
	finished      []RunSummary
}

// NewEngine creates an engine in the menu phase.
func NewEngine(tables *content.Tables, eventLog *events.EventLog, log *logger.Logger, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if log == nil {
		log = logger.Discard()
	}
	if opts.Resolution <= 0 {
		opts.Resolution = DefaultResolution
	}
	e := &Engine{
		state:         clinic.New(tables),
		tables:        tables,
		factory:       patient.NewFactory(tables, opts.Rand, opts.Clock),
		sched:         NewScheduler(tables.Balance.Patience.DecayInterval),
		eventLog:      eventLog,
		logger:        log,
		metrics:       opts.Metrics,
		now:           opts.Clock,
		resolution:    opts.Resolution,
		onRunFinished: opts.OnRunFinished,
	}
	e.publishGauges()
	return e
}

// Start enables the real-time driver. Until Start is called time only moves
// through Advance. The driver stops for good when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger.Info("Starting clinic engine", "content_version", e.tables.Version)
	e.baseCtx = ctx
	if e.state.Phase == clinic.PhasePlaying {
		e.startDriver()
	}
}

// Shutdown stops the driver and records an unfinished run as interrupted.
func (e *Engine) Shutdown() {
	e.do(func() bool {
		e.stopDriver()
		e.baseCtx = nil
		if e.runID != "" && !e.runClosed {
			e.finishRun(OutcomeInterrupted)
		}
		return true
	})
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() clinic.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// RunID identifies the current run. Empty before the first StartGame.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Tables exposes the content the engine runs on.
func (e *Engine) Tables() *content.Tables {
	return e.tables
}

// EventLog exposes the journal.
func (e *Engine) EventLog() *events.EventLog {
	return e.eventLog
}

// StartGame resets the session and opens the clinic. A run still in
// progress is recorded as abandoned first.
func (e *Engine) StartGame() bool {
	return e.do(func() bool {
		if e.runID != "" && !e.runClosed {
			e.finishRun(OutcomeAbandoned)
		}
		e.stopDriver()
		e.runID = uuid.NewString()
		e.runClosed = false
		e.runStarted = e.now()
		e.sched.Reset()

		baseline := clinic.New(e.tables)
		e.state = baseline
		next, _ := rules.EvaluateAchievements(rules.StartGame(e.tables, e.factory), e.tables.Balance.Upgrades, e.now())
		e.commit(baseline, next, events.ActorPlayer)
		e.logger.Event("RUN_STARTED", events.ActorPlayer, e.runID)
		return true
	})
}

// PauseGame suspends both timers.
func (e *Engine) PauseGame() bool {
	return e.player(rules.PauseGame)
}

// ResumeGame re-establishes both timers from zero.
func (e *Engine) ResumeGame() bool {
	return e.do(func() bool {
		if !e.apply(events.ActorPlayer, rules.ResumeGame) {
			return false
		}
		e.sched.Reset()
		return true
	})
}

// EndGame closes the session from outside the game-over policy.
func (e *Engine) EndGame() bool {
	return e.player(rules.EndGame)
}

// SwitchStation changes the player's view.
func (e *Engine) SwitchStation(station clinic.Station) bool {
	return e.player(func(s clinic.GameState) (clinic.GameState, bool) {
		return rules.SwitchStation(s, station)
	})
}

// AcceptPatient starts a waiting patient's diagnosis.
func (e *Engine) AcceptPatient(id string) bool {
	return e.player(func(s clinic.GameState) (clinic.GameState, bool) {
		return rules.AcceptPatient(s, id)
	})
}

// CompleteDiagnosis reports the diagnosis mini-game result.
func (e *Engine) CompleteDiagnosis(id string, result patient.MiniGameResult) bool {
	return e.player(func(s clinic.GameState) (clinic.GameState, bool) {
		return rules.CompleteDiagnosis(s, id, result, e.tables.Balance)
	})
}

// CompletePharmacy reports the pharmacy mini-game result.
func (e *Engine) CompletePharmacy(id string, result patient.MiniGameResult) bool {
	return e.player(func(s clinic.GameState) (clinic.GameState, bool) {
		return rules.CompletePharmacy(s, id, result)
	})
}

// CompleteAcupuncture reports the acupuncture mini-game result.
func (e *Engine) CompleteAcupuncture(id string, result patient.MiniGameResult) bool {
	return e.player(func(s clinic.GameState) (clinic.GameState, bool) {
		return rules.CompleteAcupuncture(s, id, result, e.tables.Balance)
	})
}

// ServePatient hands over a treated patient and collects the reward.
func (e *Engine) ServePatient(id string) bool {
	return e.player(func(s clinic.GameState) (clinic.GameState, bool) {
		return rules.ServePatient(s, id, e.tables, e.now())
	})
}

// UpgradeClinic buys one step of kind for an explicit cost.
func (e *Engine) UpgradeClinic(kind clinic.UpgradeKind, cost int) bool {
	return e.player(func(s clinic.GameState) (clinic.GameState, bool) {
		return rules.UpgradeClinic(s, kind, cost, e.tables.Balance.Upgrades)
	})
}

// PurchaseUpgrade buys one step of kind at the configured price.
func (e *Engine) PurchaseUpgrade(kind clinic.UpgradeKind) bool {
	return e.player(func(s clinic.GameState) (clinic.GameState, bool) {
		return rules.PurchaseUpgrade(s, kind, e.tables.Balance.Upgrades)
	})
}

// QuoteUpgrade prices the next step of kind.
func (e *Engine) QuoteUpgrade(kind clinic.UpgradeKind) rules.Quote {
	e.mu.Lock()
	defer e.mu.Unlock()
	return rules.QuoteUpgrade(e.state, kind, e.tables.Balance.Upgrades)
}

// AddExperience grants experience outside of a serve.
func (e *Engine) AddExperience(amount int) bool {
	return e.do(func() bool {
		ok := e.apply(events.ActorPlayer, func(s clinic.GameState) (clinic.GameState, bool) {
			return rules.AddExperience(s, amount, e.tables)
		})
		if ok {
			e.record(events.GameEvent{
				Type:    events.EventTypeExperienceGranted,
				ActorID: events.ActorPlayer,
				Payload: ExperiencePayload{Amount: amount},
				GameDay: e.state.Day,
			})
		}
		return ok
	})
}

// DiagnosisTimeLimit is the diagnosis mini-game limit in seconds.
func (e *Engine) DiagnosisTimeLimit() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return rules.DiagnosisTimeLimit(e.state, e.tables.Balance)
}

// Advance moves the scheduler forward by elapsed. Outside the playing phase
// it does nothing.
func (e *Engine) Advance(elapsed time.Duration) {
	e.do(func() bool {
		e.advance(elapsed)
		return true
	})
}

// advanceFrom is Advance for the real-time driver. Calls from a stale
// driver generation are dropped. It reports whether the driver should keep
// running.
func (e *Engine) advanceFrom(gen uint64, elapsed time.Duration) bool {
	alive := true
	e.do(func() bool {
		if gen != e.driverGen {
			alive = false
			return false
		}
		e.advance(elapsed)
		return true
	})
	return alive
}

func (e *Engine) advance(elapsed time.Duration) {
	if e.state.Phase != clinic.PhasePlaying || elapsed <= 0 {
		return
	}
	started := time.Now()
	e.sched.Advance(elapsed, tickSource{e})
	e.metrics.RecordAdvance(time.Since(started))
}

// tickSource adapts the engine to the scheduler. Its methods run with e.mu
// held.
type tickSource struct{ e *Engine }

func (t tickSource) SpawnInterval() time.Duration {
	return t.e.tables.Balance.SpawnInterval(t.e.state.Level)
}

func (t tickSource) Elapse(d time.Duration) {
	b := t.e.tables.Balance
	t.e.apply(events.ActorSystem, func(s clinic.GameState) (clinic.GameState, bool) {
		return rules.AdvanceClock(s, d, b)
	})
}

func (t tickSource) Tick(kind TickKind) bool {
	e := t.e
	b := e.tables.Balance
	var applied bool
	switch kind {
	case TickDecay:
		applied = e.apply(events.ActorSystem, func(s clinic.GameState) (clinic.GameState, bool) {
			return rules.DecayTick(s, b)
		})
	case TickSpawn:
		applied = e.apply(events.ActorSystem, func(s clinic.GameState) (clinic.GameState, bool) {
			return rules.SpawnTick(s, b, e.factory)
		})
	}
	if applied {
		e.metrics.RecordTick(kind.String())
	}
	return e.state.Phase == clinic.PhasePlaying
}

// do runs fn under the lock and delivers finished-run callbacks after the
// lock is released. The lock is released even if fn panics.
func (e *Engine) do(fn func() bool) bool {
	ok, finished := func() (bool, []RunSummary) {
		e.mu.Lock()
		defer e.mu.Unlock()
		ok := fn()
		finished := e.finished
		e.finished = nil
		return ok, finished
	}()

	if e.onRunFinished != nil {
		for _, r := range finished {
			e.onRunFinished(r)
		}
	}
	return ok
}

func (e *Engine) player(reducer func(clinic.GameState) (clinic.GameState, bool)) bool {
	return e.do(func() bool {
		return e.apply(events.ActorPlayer, reducer)
	})
}

// apply runs reducer on the current state, evaluates achievements and
// commits the result. Caller holds e.mu.
func (e *Engine) apply(actor string, reducer func(clinic.GameState) (clinic.GameState, bool)) bool {
	prev := e.state
	next, ok := reducer(prev)
	if !ok {
		return false
	}
	next, _ = rules.EvaluateAchievements(next, e.tables.Balance.Upgrades, e.now())
	e.commit(prev, next, actor)
	return true
}

// commit installs next, journals the difference and handles the side
// effects of phase and level changes. Caller holds e.mu.
func (e *Engine) commit(prev, next clinic.GameState, actor string) {
	e.state = next

	for _, ev := range diff(prev, next, actor) {
		e.record(ev)
		switch ev.Type {
		case events.EventTypePatientSpawned:
			e.metrics.RecordPatient("spawned")
		case events.EventTypePatientServed:
			e.metrics.RecordPatient("served")
		case events.EventTypePatientFailed:
			e.metrics.RecordPatient("failed")
			e.logger.Event(string(ev.Type), ev.TargetID, "patience ran out")
		case events.EventTypeLevelUp:
			e.logger.Event(string(ev.Type), actor, "level "+humanize.Comma(int64(next.Level)))
		case events.EventTypeAchievementUnlocked, events.EventTypeDiseaseUnlocked:
			e.logger.Event(string(ev.Type), actor, ev.TargetID)
		case events.EventTypePhaseChanged:
			e.logger.Event(string(ev.Type), actor, string(prev.Phase)+" -> "+string(next.Phase))
		}
	}

	if next.Level != prev.Level {
		e.sched.ResetSpawn()
	}
	if prev.Phase != next.Phase {
		if next.Phase == clinic.PhasePlaying {
			e.startDriver()
		} else {
			e.stopDriver()
		}
		if next.Phase == clinic.PhaseGameOver {
			e.finishRun(OutcomeGameOver)
		}
	}
	e.publishGauges()
}

// record stamps and appends one journal event. Caller holds e.mu.
func (e *Engine) record(ev events.GameEvent) {
	ev.RunID = e.runID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	e.eventLog.Append(ev)
}

// finishRun queues the summary of the current run. Caller holds e.mu.
func (e *Engine) finishRun(outcome string) {
	s := e.state
	unlocked := 0
	for _, a := range s.Achievements {
		if a.Unlocked {
			unlocked++
		}
	}
	summary := RunSummary{
		RunID:                e.runID,
		ContentVersion:       e.tables.Version,
		Outcome:              outcome,
		StartedAt:            e.runStarted,
		EndedAt:              e.now(),
		PlayTime:             s.Statistics.TotalPlayTime,
		Level:                s.Level,
		Day:                  s.Day,
		Coins:                s.Coins,
		Reputation:           s.Reputation,
		CompletedOrders:      s.CompletedOrders,
		FailedOrders:         s.FailedOrders,
		PerfectTreatments:    s.Statistics.PerfectTreatments,
		MaxCombo:             s.Statistics.MaxCombo,
		AchievementsUnlocked: unlocked,
	}
	e.record(events.GameEvent{
		Type:    events.EventTypeRunFinished,
		ActorID: events.ActorSystem,
		Payload: summary,
		GameDay: s.Day,
	})
	e.logger.Infof("Run %s finished (%s): level %d, %s coins, %d served, %d failed",
		summary.RunID, outcome, summary.Level, humanize.Comma(int64(summary.Coins)),
		summary.CompletedOrders, summary.FailedOrders)
	e.runClosed = true
	e.finished = append(e.finished, summary)
}

func (e *Engine) publishGauges() {
	e.metrics.SetSession(string(e.state.Phase), e.state.ActiveCount(), e.state.Coins, e.state.Level)
}
