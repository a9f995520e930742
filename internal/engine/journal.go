package engine

import (
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
)

// PhasePayload accompanies PHASE_CHANGED.
type PhasePayload struct {
	From clinic.Phase `json:"from"`
	To   clinic.Phase `json:"to"`
}

// StationPayload accompanies STATION_SWITCHED.
type StationPayload struct {
	From clinic.Station `json:"from"`
	To   clinic.Station `json:"to"`
}

// SpawnPayload accompanies PATIENT_SPAWNED.
type SpawnPayload struct {
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	DiagnosisID string `json:"diagnosis_id"`
}

// StatusPayload accompanies PATIENT_STATUS_CHANGED and PATIENT_FAILED.
type StatusPayload struct {
	From patient.Status `json:"from"`
	To   patient.Status `json:"to"`
}

// ServePayload accompanies PATIENT_SERVED.
type ServePayload struct {
	Score           float64 `json:"score"`
	CoinsDelta      int     `json:"coins_delta"`
	ReputationDelta int     `json:"reputation_delta"`
	Combo           int     `json:"combo"`
}

// LevelPayload accompanies LEVEL_UP.
type LevelPayload struct {
	From           int `json:"from"`
	To             int `json:"to"`
	ExpToNextLevel int `json:"exp_to_next_level"`
}

// UpgradePayload accompanies UPGRADE_PURCHASED.
type UpgradePayload struct {
	From int `json:"from"`
	To   int `json:"to"`
	Cost int `json:"cost"`
}

// DayPayload accompanies DAY_ADVANCED.
type DayPayload struct {
	Day     int  `json:"day"`
	Perfect bool `json:"perfect"`
}

// ExperiencePayload accompanies EXPERIENCE_GRANTED.
type ExperiencePayload struct {
	Amount int `json:"amount"`
}

// diff derives the journal entries for one applied transition. Events are
// returned without ids, run ids or timestamps.
func diff(prev, next clinic.GameState, actor string) []events.GameEvent {
	var out []events.GameEvent
	emit := func(t events.EventType, target string, payload any) {
		out = append(out, events.GameEvent{Type: t, ActorID: actor, TargetID: target, Payload: payload, GameDay: next.Day})
	}

	if prev.Phase != next.Phase {
		emit(events.EventTypePhaseChanged, "", PhasePayload{From: prev.Phase, To: next.Phase})
	}
	if prev.CurrentStation != next.CurrentStation {
		emit(events.EventTypeStationSwitched, "", StationPayload{From: prev.CurrentStation, To: next.CurrentStation})
	}

	before := make(map[string]patient.Patient, len(prev.Patients))
	for _, p := range prev.Patients {
		before[p.ID] = p
	}
	for _, p := range next.Patients {
		old, seen := before[p.ID]
		switch {
		case !seen:
			emit(events.EventTypePatientSpawned, p.ID, SpawnPayload{Name: p.Name, Avatar: p.Avatar, DiagnosisID: p.Diagnosis.ID})
		case old.Status == p.Status:
		case p.Status == patient.StatusFailed:
			emit(events.EventTypePatientFailed, p.ID, StatusPayload{From: old.Status, To: p.Status})
		case p.Status == patient.StatusCompleted:
			emit(events.EventTypePatientServed, p.ID, ServePayload{
				Score:           old.Patience,
				CoinsDelta:      next.Coins - prev.Coins,
				ReputationDelta: next.Reputation - prev.Reputation,
				Combo:           next.Statistics.CurrentCombo,
			})
		default:
			emit(events.EventTypePatientStatusChanged, p.ID, StatusPayload{From: old.Status, To: p.Status})
		}
	}

	if next.Level > prev.Level {
		emit(events.EventTypeLevelUp, "", LevelPayload{From: prev.Level, To: next.Level, ExpToNextLevel: next.ExpToNextLevel})
	}
	for _, id := range next.UnlockedDiseases {
		if !prev.IsUnlocked(id) {
			emit(events.EventTypeDiseaseUnlocked, id, nil)
		}
	}
	for _, k := range clinic.UpgradeKinds {
		if from, to := prev.Upgrades.Level(k), next.Upgrades.Level(k); from != to {
			emit(events.EventTypeUpgradePurchased, string(k), UpgradePayload{From: from, To: to, Cost: prev.Coins - next.Coins})
		}
	}
	for _, a := range next.Achievements {
		if !a.Unlocked {
			continue
		}
		if old, ok := prev.Achievement(a.ID); !ok || !old.Unlocked {
			emit(events.EventTypeAchievementUnlocked, a.ID, a.AchievementDef)
		}
	}
	if next.Day > prev.Day {
		emit(events.EventTypeDayAdvanced, "", DayPayload{
			Day:     next.Day,
			Perfect: next.Statistics.PerfectDays > prev.Statistics.PerfectDays,
		})
	}
	return out
}
