package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/logger"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/metrics"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	engine *Engine
	log    *events.EventLog
	clock  *fakeClock
	tables *content.Tables

	mu   sync.Mutex
	runs []RunSummary
}

func newHarness(t *testing.T, tweak func(*content.Tables)) *harness {
	t.Helper()
	tables := content.MustDefault()
	if tweak != nil {
		tweak(tables)
	}
	h := &harness{
		log:    events.NewEventLog(nil),
		clock:  &fakeClock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)},
		tables: tables,
	}
	h.engine = NewEngine(tables, h.log, logger.Discard(), Options{
		Clock:   h.clock.Now,
		Rand:    rand.New(rand.NewPCG(3, 4)),
		Metrics: metrics.New(),
		OnRunFinished: func(r RunSummary) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.runs = append(h.runs, r)
		},
	})
	return h
}

// advance moves the wall clock and the scheduler together.
func (h *harness) advance(d time.Duration) {
	h.clock.Add(d)
	h.engine.Advance(d)
}

func (h *harness) finishedRuns() []RunSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]RunSummary(nil), h.runs...)
}

func (h *harness) first(t *testing.T) patient.Patient {
	t.Helper()
	s := h.engine.Snapshot()
	require.NotEmpty(t, s.Patients)
	return s.Patients[0]
}

func TestStartGameOpensClinic(t *testing.T) {
	h := newHarness(t, nil)
	require.True(t, h.engine.StartGame())

	s := h.engine.Snapshot()
	assert.Equal(t, clinic.PhasePlaying, s.Phase)
	require.Len(t, s.Patients, 1)
	assert.Equal(t, patient.StatusWaiting, s.Patients[0].Status)

	runID := h.engine.RunID()
	assert.NotEmpty(t, runID)
	evs := h.log.GetByRun(runID)
	require.Len(t, evs, 2)
	assert.Equal(t, events.EventTypePhaseChanged, evs[0].Type)
	assert.Equal(t, PhasePayload{From: clinic.PhaseMenu, To: clinic.PhasePlaying}, evs[0].Payload)
	assert.Equal(t, events.EventTypePatientSpawned, evs[1].Type)
	assert.Equal(t, s.Patients[0].ID, evs[1].TargetID)
}

func TestOperationsRejectedInMenu(t *testing.T) {
	h := newHarness(t, nil)

	assert.False(t, h.engine.PauseGame())
	assert.False(t, h.engine.AcceptPatient("P1"))
	assert.False(t, h.engine.UpgradeClinic(clinic.UpgradeDiagnosisSpeed, 0))
	assert.True(t, h.engine.SwitchStation(clinic.StationPharmacy))

	h.advance(time.Minute)
	assert.Empty(t, h.engine.Snapshot().Patients)
}

func TestPatientFailsAfterTwoHundredDecayTicks(t *testing.T) {
	h := newHarness(t, func(tb *content.Tables) { tb.Balance.Session.MaxFailedOrders = 0 })
	h.engine.StartGame()
	id := h.first(t).ID

	h.advance(199 * time.Second)
	p := h.first(t)
	assert.Equal(t, 0.5, p.Patience)
	assert.True(t, p.Active())

	h.advance(time.Second)
	p = h.first(t)
	assert.Equal(t, 0.0, p.Patience)
	assert.Equal(t, patient.StatusFailed, p.Status)

	failed := h.log.GetByType(events.EventTypePatientFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].TargetID)

	s := h.engine.Snapshot()
	assert.Equal(t, 1, s.FailedOrders)
	assert.Equal(t, 200*time.Second, s.Statistics.TotalPlayTime)
}

func TestSpawnTimerFollowsLevelTable(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()
	first := h.first(t).ID

	require.True(t, h.engine.AcceptPatient(first))
	res := patient.MiniGameResult{Success: true, Score: 90}
	require.True(t, h.engine.CompleteDiagnosis(first, res))
	require.True(t, h.engine.CompletePharmacy(first, res))
	if h.first(t).Status == patient.StatusAcupuncture {
		require.True(t, h.engine.CompleteAcupuncture(first, res))
	}
	require.True(t, h.engine.ServePatient(first))

	h.advance(29 * time.Second)
	assert.Len(t, h.engine.Snapshot().Patients, 1)
	h.advance(time.Second)
	assert.Len(t, h.engine.Snapshot().Patients, 2)
}

func TestPauseSuspendsTimers(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()

	h.advance(1500 * time.Millisecond)
	assert.Equal(t, 99.5, h.first(t).Patience)

	require.True(t, h.engine.PauseGame())
	h.advance(time.Hour)
	s := h.engine.Snapshot()
	assert.Equal(t, 99.5, s.Patients[0].Patience)
	assert.Len(t, s.Patients, 1)

	require.True(t, h.engine.ResumeGame())
	h.advance(500 * time.Millisecond)
	assert.Equal(t, 99.5, h.first(t).Patience, "timers restart from zero on resume")
	h.advance(500 * time.Millisecond)
	assert.Equal(t, 99.0, h.first(t).Patience)
}

func TestServeJournalsReward(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()
	id := h.first(t).ID
	res := patient.MiniGameResult{Success: true, Score: 100}

	h.engine.AcceptPatient(id)
	h.engine.CompleteDiagnosis(id, res)
	h.engine.CompletePharmacy(id, res)
	h.engine.CompleteAcupuncture(id, res)
	h.advance(30 * time.Second)
	require.True(t, h.engine.ServePatient(id))

	s := h.engine.Snapshot()
	assert.Equal(t, 500+100, s.Coins)
	assert.Equal(t, 85, s.Reputation)
	assert.Equal(t, 52, s.Experience)

	served := h.log.GetByType(events.EventTypePatientServed)
	require.Len(t, served, 1)
	assert.Equal(t, ServePayload{Score: 85, CoinsDelta: 100, ReputationDelta: 85, Combo: 1}, served[0].Payload)

	unlocked := h.log.GetByType(events.EventTypeAchievementUnlocked)
	require.NotEmpty(t, unlocked)
	assert.Equal(t, "first_patient", unlocked[0].TargetID)

	a, ok := s.Achievement("first_patient")
	require.True(t, ok)
	assert.Equal(t, h.clock.Now(), a.UnlockedAt)

	assert.False(t, h.engine.ServePatient(id), "serving twice is a no-op")
}

func TestGameOverFinishesRun(t *testing.T) {
	h := newHarness(t, func(tb *content.Tables) { tb.Balance.Session.MaxFailedOrders = 1 })
	h.engine.StartGame()
	runID := h.engine.RunID()

	h.advance(200 * time.Second)

	s := h.engine.Snapshot()
	assert.Equal(t, clinic.PhaseGameOver, s.Phase)
	runs := h.finishedRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
	assert.Equal(t, OutcomeGameOver, runs[0].Outcome)
	assert.Equal(t, 1, runs[0].FailedOrders)
	assert.Len(t, h.log.GetByType(events.EventTypeRunFinished), 1)

	h.advance(time.Hour)
	assert.Equal(t, s, h.engine.Snapshot(), "nothing moves after game over")

	h.engine.Shutdown()
	assert.Len(t, h.finishedRuns(), 1)
}

func TestRestartAbandonsRunningSession(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()
	first := h.engine.RunID()

	h.engine.StartGame()
	runs := h.finishedRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, first, runs[0].RunID)
	assert.Equal(t, OutcomeAbandoned, runs[0].Outcome)
	assert.NotEqual(t, first, h.engine.RunID())

	h.engine.Shutdown()
	runs = h.finishedRuns()
	require.Len(t, runs, 2)
	assert.Equal(t, OutcomeInterrupted, runs[1].Outcome)
}

func TestEndGameIsExternalDecision(t *testing.T) {
	h := newHarness(t, nil)
	assert.False(t, h.engine.EndGame())

	h.engine.StartGame()
	h.engine.PauseGame()
	require.True(t, h.engine.EndGame())
	assert.Equal(t, clinic.PhaseGameOver, h.engine.Snapshot().Phase)
	assert.Equal(t, OutcomeGameOver, h.finishedRuns()[0].Outcome)
}

func TestUpgradesAndQuotes(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()

	q := h.engine.QuoteUpgrade(clinic.UpgradePharmacySlots)
	assert.Equal(t, 300, q.Cost)
	require.True(t, h.engine.PurchaseUpgrade(clinic.UpgradePharmacySlots))
	assert.False(t, h.engine.UpgradeClinic(clinic.UpgradeDiagnosisSpeed, 1000))

	s := h.engine.Snapshot()
	assert.Equal(t, 200, s.Coins)
	assert.Equal(t, 3, s.Upgrades.PharmacySlots)

	ups := h.log.GetByType(events.EventTypeUpgradePurchased)
	require.Len(t, ups, 1)
	assert.Equal(t, string(clinic.UpgradePharmacySlots), ups[0].TargetID)
	assert.Equal(t, UpgradePayload{From: 2, To: 3, Cost: 300}, ups[0].Payload)
}

func TestAddExperienceLevelsUpAndUnlocks(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()

	require.True(t, h.engine.AddExperience(100))
	s := h.engine.Snapshot()
	assert.Equal(t, 2, s.Level)
	assert.Len(t, s.UnlockedDiseases, 6)

	assert.Len(t, h.log.GetByType(events.EventTypeLevelUp), 1)
	assert.Len(t, h.log.GetByType(events.EventTypeDiseaseUnlocked), 1)
	assert.Len(t, h.log.GetByType(events.EventTypeExperienceGranted), 1)
	assert.False(t, h.engine.AddExperience(-5))
}

func TestDiagnosisTimeLimitTracksUpgrade(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()
	assert.Equal(t, 15, h.engine.DiagnosisTimeLimit())

	require.True(t, h.engine.UpgradeClinic(clinic.UpgradeDiagnosisSpeed, 0))
	assert.Equal(t, 18, h.engine.DiagnosisTimeLimit())
}

func TestDayAdvancesWithPlayTime(t *testing.T) {
	h := newHarness(t, func(tb *content.Tables) {
		tb.Balance.Session.DayLength = 10 * time.Second
		tb.Balance.Session.MaxFailedOrders = 0
	})
	h.engine.StartGame()

	h.advance(25 * time.Second)
	s := h.engine.Snapshot()
	assert.Equal(t, 3, s.Day)
	assert.Len(t, h.log.GetByType(events.EventTypeDayAdvanced), 2)
}

func TestUnknownUpgradeKindIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()
	before := h.engine.Snapshot()

	assert.False(t, h.engine.UpgradeClinic(clinic.UpgradeKind("bogus"), 0))
	assert.False(t, h.engine.PurchaseUpgrade(clinic.UpgradeKind("bogus")))
	assert.False(t, h.engine.QuoteUpgrade(clinic.UpgradeKind("bogus")).Affordable)
	assert.Equal(t, before, h.engine.Snapshot())
}

func TestLockReleasedWhenOperationPanics(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()

	assert.Panics(t, func() {
		h.engine.do(func() bool { panic("boom") })
	})

	done := make(chan clinic.GameState, 1)
	go func() { done <- h.engine.Snapshot() }()
	select {
	case s := <-done:
		assert.Equal(t, clinic.PhasePlaying, s.Phase)
	case <-time.After(time.Second):
		t.Fatal("engine lock still held after a panicking operation")
	}
	assert.True(t, h.engine.PauseGame())
}

type stalledLedger struct{ release chan struct{} }

func (l stalledLedger) Append(events.GameEvent) error {
	<-l.release
	return nil
}

func TestGameplayContinuesWhileLedgerStalls(t *testing.T) {
	ledger := stalledLedger{release: make(chan struct{})}
	el := events.NewEventLog(ledger, events.WithQueueSize(2))
	t.Cleanup(func() {
		close(ledger.release)
		el.Close()
	})
	e := NewEngine(content.MustDefault(), el, logger.Discard(), Options{
		Rand: rand.New(rand.NewPCG(5, 6)),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.StartGame()
		for i := 0; i < 20; i++ {
			e.SwitchStation(clinic.StationDiagnosis)
			e.SwitchStation(clinic.StationOrder)
		}
		e.PauseGame()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine blocked on the ledger")
	}

	assert.Equal(t, clinic.PhasePaused, e.Snapshot().Phase)
	assert.Positive(t, el.Dropped())
}

func TestStaleDriverGenerationIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.StartGame()

	h.engine.mu.Lock()
	stale := h.engine.driverGen
	h.engine.driverGen++
	h.engine.mu.Unlock()

	assert.False(t, h.engine.advanceFrom(stale, time.Minute))
	assert.Equal(t, 100.0, h.first(t).Patience)
}

func TestRealTimeDriverFollowsPhase(t *testing.T) {
	h := newHarness(t, func(tb *content.Tables) {
		tb.Balance.Patience.DecayInterval = 5 * time.Millisecond
		tb.Balance.Session.MaxFailedOrders = 0
	})
	h.engine.resolution = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.engine.Start(ctx)
	h.engine.StartGame()

	require.Eventually(t, func() bool { return h.first(t).Patience < 100 }, 2*time.Second, 5*time.Millisecond)

	require.True(t, h.engine.PauseGame())
	frozen := h.first(t).Patience
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, h.first(t).Patience)

	h.engine.Shutdown()
}

func TestConcurrentCallersKeepInvariants(t *testing.T) {
	h := newHarness(t, func(tb *content.Tables) { tb.Balance.Session.MaxFailedOrders = 0 })
	h.engine.StartGame()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := patient.MiniGameResult{Score: 80}
			for i := 0; i < 200; i++ {
				h.engine.Advance(700 * time.Millisecond)
				for _, p := range h.engine.Snapshot().Patients {
					h.engine.AcceptPatient(p.ID)
					h.engine.CompleteDiagnosis(p.ID, res)
					h.engine.CompletePharmacy(p.ID, res)
					h.engine.CompleteAcupuncture(p.ID, res)
					h.engine.ServePatient(p.ID)
				}
			}
		}()
	}
	wg.Wait()

	s := h.engine.Snapshot()
	for _, p := range s.Patients {
		assert.GreaterOrEqual(t, p.Patience, 0.0)
		assert.LessOrEqual(t, p.Patience, 100.0)
		if p.Patience == 0 {
			assert.Equal(t, patient.StatusFailed, p.Status)
		}
	}
	assert.Equal(t, s.CompletedOrders, s.Statistics.TotalPatientsServed)
}
