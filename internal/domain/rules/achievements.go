package rules

import (
	"time"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
)

// MetricValue reads the current value of an achievement metric from s.
func MetricValue(s clinic.GameState, m content.Metric, tracks content.UpgradeTracks) int {
	st := s.Statistics
	switch m {
	case content.MetricPatientsServed:
		return st.TotalPatientsServed
	case content.MetricPerfectTreatments:
		return st.PerfectTreatments
	case content.MetricMaxCombo:
		return st.MaxCombo
	case content.MetricFastTreatments:
		return st.FastTreatments
	case content.MetricCoinsEarned:
		return st.TotalCoinsEarned
	case content.MetricReputation:
		return s.Reputation
	case content.MetricLevel:
		return s.Level
	case content.MetricPerfectDiagnoses:
		return st.PerfectDiagnoses
	case content.MetricPharmacyCompletions:
		return st.PharmacyCompletions
	case content.MetricPerfectAcupuncture:
		return st.PerfectAcupunctures
	case content.MetricPerfectDays:
		return st.PerfectDays
	case content.MetricUpgradesMaxed:
		if s.Upgrades.MaxedCount(tracks) == len(clinic.UpgradeKinds) {
			return 1
		}
		return 0
	}
	return 0
}

// EvaluateAchievements refreshes progress on every achievement and unlocks
// those whose metric reached the target. Unlocks are one-way and keep their
// first timestamp. It reports whether anything changed.
func EvaluateAchievements(s clinic.GameState, tracks content.UpgradeTracks, now time.Time) (clinic.GameState, bool) {
	var next clinic.GameState
	cloned := false
	for i, a := range s.Achievements {
		progress := min(MetricValue(s, a.Metric, tracks), a.Target)
		unlock := !a.Unlocked && progress >= a.Target
		if progress == a.Progress && !unlock {
			continue
		}
		if !cloned {
			next = s.Clone()
			cloned = true
		}
		na := &next.Achievements[i]
		na.Progress = progress
		if unlock {
			na.Unlocked = true
			na.UnlockedAt = now
		}
	}
	if !cloned {
		return s, false
	}
	return next, true
}
