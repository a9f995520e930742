package rules

import (
	"time"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
)

// Spawner produces new patients. *patient.Factory implements it.
type Spawner interface {
	Spawn(unlocked []string) patient.Patient
}

// DecayRate is the patience lost per decay tick after the patience boost
// upgrade is applied.
func DecayRate(s clinic.GameState, b content.Balance) float64 {
	return b.Patience.DecayRate * float64(100-s.Upgrades.PatienceBoost) / 100
}

// DecayTick drains every active patient's patience by one tick. A patient
// that reaches zero is failed in the same step. The game-over policy is
// checked afterwards.
func DecayTick(s clinic.GameState, b content.Balance) (clinic.GameState, bool) {
	if s.Phase != clinic.PhasePlaying {
		return s, false
	}
	next := s.Clone()
	rate := DecayRate(s, b)
	for i := range next.Patients {
		p := &next.Patients[i]
		if !p.Active() {
			continue
		}
		p.Patience -= rate
		if p.Patience <= 0 {
			p.Patience = 0
			p.Status = patient.StatusFailed
			next.FailedOrders++
			next.DayFailed++
			next.Statistics.CurrentCombo = 0
		}
	}
	next, _ = CheckGameOver(next, b)
	return next, true
}

// SpawnTick adds one patient when the active count is below the level's
// capacity.
func SpawnTick(s clinic.GameState, b content.Balance, sp Spawner) (clinic.GameState, bool) {
	if s.Phase != clinic.PhasePlaying {
		return s, false
	}
	if s.ActiveCount() >= b.Capacity(s.Level) {
		return s, false
	}
	next := s.Clone()
	next.Patients = append(next.Patients, sp.Spawn(next.UnlockedDiseases))
	return next, true
}

// AdvanceClock adds playing time, rolling over in-game days. A day with at
// least one serve and no failures counts as perfect.
func AdvanceClock(s clinic.GameState, elapsed time.Duration, b content.Balance) (clinic.GameState, bool) {
	if s.Phase != clinic.PhasePlaying || elapsed <= 0 {
		return s, false
	}
	next := s.Clone()
	next.Statistics.TotalPlayTime += elapsed
	next.DayClock += elapsed
	for next.DayClock >= b.Session.DayLength {
		next.DayClock -= b.Session.DayLength
		if next.DayServed > 0 && next.DayFailed == 0 {
			next.Statistics.PerfectDays++
		}
		next.Day++
		next.DayServed = 0
		next.DayFailed = 0
	}
	return next, true
}

// CheckGameOver ends a playing session once failed orders reach the
// configured limit. A limit of zero disables the check.
func CheckGameOver(s clinic.GameState, b content.Balance) (clinic.GameState, bool) {
	limit := b.Session.MaxFailedOrders
	if s.Phase != clinic.PhasePlaying || limit <= 0 || s.FailedOrders < limit {
		return s, false
	}
	next := s.Clone()
	next.Phase = clinic.PhaseGameOver
	return next, true
}
