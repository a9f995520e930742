package rules

import (
	"math"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
)

// StartGame resets the session and opens the clinic with one patient
// already waiting. It is accepted from any phase.
func StartGame(t *content.Tables, sp Spawner) clinic.GameState {
	s := clinic.New(t)
	s.Phase = clinic.PhasePlaying
	s.Patients = append(s.Patients, sp.Spawn(s.UnlockedDiseases))
	return s
}

// PauseGame freezes a playing session.
func PauseGame(s clinic.GameState) (clinic.GameState, bool) {
	return switchPhase(s, clinic.PhasePlaying, clinic.PhasePaused)
}

// ResumeGame continues a paused session.
func ResumeGame(s clinic.GameState) (clinic.GameState, bool) {
	return switchPhase(s, clinic.PhasePaused, clinic.PhasePlaying)
}

// EndGame closes a playing or paused session.
func EndGame(s clinic.GameState) (clinic.GameState, bool) {
	if s.Phase != clinic.PhasePlaying && s.Phase != clinic.PhasePaused {
		return s, false
	}
	next := s.Clone()
	next.Phase = clinic.PhaseGameOver
	return next, true
}

func switchPhase(s clinic.GameState, from, to clinic.Phase) (clinic.GameState, bool) {
	if s.Phase != from {
		return s, false
	}
	next := s.Clone()
	next.Phase = to
	return next, true
}

// SwitchStation changes the player's view. It has no gameplay effect and is
// allowed in every phase.
func SwitchStation(s clinic.GameState, station clinic.Station) (clinic.GameState, bool) {
	if !station.Valid() || s.CurrentStation == station {
		return s, false
	}
	next := s.Clone()
	next.CurrentStation = station
	return next, true
}

// DiagnosisTimeLimit is the diagnosis mini-game limit in seconds for the
// current level, extended by the diagnosis speed upgrade.
func DiagnosisTimeLimit(s clinic.GameState, b content.Balance) int {
	base := float64(b.DiagnosisTimeLimit(s.Level))
	bonus := 1 + b.Stations.SpeedBonusPerLevel*float64(s.Upgrades.DiagnosisSpeed-b.Upgrades.DiagnosisSpeed.Min)
	return int(math.Round(base * bonus))
}
