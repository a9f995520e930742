package rules

import (
	"math"
	"time"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
)

// RewardFor maps a serve score to its tier coin delta.
func RewardFor(score float64, tiers content.RewardTiers) int {
	switch {
	case score > tiers.LargeAbove:
		return tiers.LargeBonus
	case score > tiers.MediumAbove:
		return tiers.MediumBonus
	default:
		return tiers.Penalty
	}
}

// ApplyMultiplier scales a positive bonus by pct percent, rounding half away
// from zero. Penalties are never scaled.
func ApplyMultiplier(bonus, pct int) int {
	if bonus <= 0 {
		return bonus
	}
	return (bonus*pct + 50) / 100
}

// ExperienceFor is floor(score/divisor) + base.
func ExperienceFor(score float64, p content.Progression) int {
	return int(math.Floor(score/float64(p.ExperienceDivisor))) + p.ExperienceBase
}

// ServePatient completes a patient waiting at the serving counter. Current
// patience is the score: it selects the coin tier, adds reputation and
// experience, and updates combo and treatment statistics.
func ServePatient(s clinic.GameState, id string, t *content.Tables, now time.Time) (clinic.GameState, bool) {
	if s.Phase != clinic.PhasePlaying {
		return s, false
	}
	i := s.FindPatient(id)
	if i < 0 || s.Patients[i].Status != patient.StatusServing {
		return s, false
	}

	b := t.Balance
	next := s.Clone()
	p := &next.Patients[i]
	score := p.Patience

	delta := ApplyMultiplier(RewardFor(score, b.Economy.Rewards), next.Upgrades.CoinMultiplierPct)
	next.Coins += delta
	if delta > 0 {
		next.Statistics.TotalCoinsEarned += delta
	}
	next.Reputation += int(math.Floor(score))

	stats := &next.Statistics
	stats.TotalPatientsServed++
	if score > b.Session.PerfectTreatmentAbove {
		stats.PerfectTreatments++
	}
	if score > b.Economy.Rewards.MediumAbove {
		stats.CurrentCombo++
		stats.MaxCombo = max(stats.MaxCombo, stats.CurrentCombo)
	} else {
		stats.CurrentCombo = 0
	}
	if took := now.Sub(p.OrderTime); took >= 0 {
		if stats.FastestTreatment == 0 || took < stats.FastestTreatment {
			stats.FastestTreatment = took
		}
		if took <= b.Session.FastTreatment {
			stats.FastTreatments++
		}
	}

	p.Status = patient.StatusCompleted
	next.CompletedOrders++
	next.DayServed++

	next = gainExperience(next, ExperienceFor(score, b.Progression), t)
	return next, true
}

// AddExperience grants experience outside of a serve, e.g. a watched reward
// video. It follows the same level-up policy as serving.
func AddExperience(s clinic.GameState, amount int, t *content.Tables) (clinic.GameState, bool) {
	if amount <= 0 || (s.Phase != clinic.PhasePlaying && s.Phase != clinic.PhasePaused) {
		return s, false
	}
	return gainExperience(s.Clone(), amount, t), true
}

// gainExperience mutates s in place. At most one level is gained per call;
// surplus experience carries over to the next call.
func gainExperience(s clinic.GameState, amount int, t *content.Tables) clinic.GameState {
	prog := t.Balance.Progression
	s.Experience += amount
	if s.Experience < s.ExpToNextLevel {
		return s
	}
	s.Experience -= s.ExpToNextLevel
	s.Level++
	s.ExpToNextLevel = int(math.Floor(float64(s.ExpToNextLevel) * prog.ThresholdGrowth))
	s.Statistics.HighestLevel = max(s.Statistics.HighestLevel, s.Level)
	if prog.UnlockEveryLevels > 0 && s.Level%prog.UnlockEveryLevels == 0 {
		s.UnlockedDiseases = unlockNext(s.UnlockedDiseases, t)
	}
	return s
}

// unlockNext appends the first catalog entry not yet unlocked.
func unlockNext(unlocked []string, t *content.Tables) []string {
	have := make(map[string]bool, len(unlocked))
	for _, id := range unlocked {
		have[id] = true
	}
	for _, d := range t.Diagnoses {
		if !have[d.ID] {
			return append(unlocked, d.ID)
		}
	}
	return unlocked
}
