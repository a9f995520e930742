// Package clinic defines the GameState root and the value types hanging off
// it. Everything here is plain data plus copy helpers; the rules that change
// a state live in package rules.
// This package is PURE and must NOT import any infrastructure packages.
package clinic

import (
	"slices"
	"time"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
)

// Phase is the session phase.
type Phase string

const (
	PhaseMenu     Phase = "menu"
	PhasePlaying  Phase = "playing"
	PhasePaused   Phase = "paused"
	PhaseGameOver Phase = "gameover"
)

// Station is the view the player is looking at.
type Station string

const (
	StationOrder       Station = "order"
	StationDiagnosis   Station = "diagnosis"
	StationPharmacy    Station = "pharmacy"
	StationAcupuncture Station = "acupuncture"
	StationServing     Station = "serving"
)

// Valid reports whether s names a known station.
func (s Station) Valid() bool {
	switch s {
	case StationOrder, StationDiagnosis, StationPharmacy, StationAcupuncture, StationServing:
		return true
	}
	return false
}

// Achievement is an achievement definition plus its progress in this run.
type Achievement struct {
	content.AchievementDef
	Progress   int       `json:"progress"`
	Unlocked   bool      `json:"unlocked"`
	UnlockedAt time.Time `json:"unlockedAt,omitzero"`
}

// Statistics accumulates over a run. CurrentCombo is the only counter that
// goes down.
type Statistics struct {
	TotalPatientsServed int           `json:"totalPatientsServed"`
	PerfectTreatments   int           `json:"perfectTreatments"`
	MaxCombo            int           `json:"maxCombo"`
	CurrentCombo        int           `json:"currentCombo"`
	FastestTreatment    time.Duration `json:"fastestTreatment"` // 0 until the first serve
	FastTreatments      int           `json:"fastTreatments"`
	TotalPlayTime       time.Duration `json:"totalPlayTime"`
	HighestLevel        int           `json:"highestLevel"`
	TotalCoinsEarned    int           `json:"totalCoinsEarned"`
	PerfectDiagnoses    int           `json:"perfectDiagnoses"`
	PharmacyCompletions int           `json:"pharmacyCompletions"`
	PerfectAcupunctures int           `json:"perfectAcupunctures"`
	PerfectDays         int           `json:"perfectDays"`
}

// GameState is the single root value of a session.
type GameState struct {
	Phase            Phase             `json:"phase"`
	CurrentStation   Station           `json:"currentStation"`
	Level            int               `json:"level"`
	Experience       int               `json:"experience"`
	ExpToNextLevel   int               `json:"expToNextLevel"`
	Coins            int               `json:"coins"`
	Reputation       int               `json:"reputation"`
	Day              int               `json:"day"`
	DayClock         time.Duration     `json:"dayClock"` // playing time into the current day
	DayServed        int               `json:"dayServed"`
	DayFailed        int               `json:"dayFailed"`
	Patients         []patient.Patient `json:"patients"`
	CompletedOrders  int               `json:"completedOrders"`
	FailedOrders     int               `json:"failedOrders"`
	UnlockedDiseases []string          `json:"unlockedDiseases"`
	Upgrades         Upgrades          `json:"upgrades"`
	Achievements     []Achievement     `json:"achievements"`
	Statistics       Statistics        `json:"statistics"`
}

// New returns the menu state for a fresh session over tables.
func New(tables *content.Tables) GameState {
	b := tables.Balance
	s := GameState{
		Phase:            PhaseMenu,
		CurrentStation:   StationOrder,
		Level:            1,
		ExpToNextLevel:   b.Progression.InitialThreshold,
		Coins:            b.Economy.InitialCoins,
		Reputation:       b.Economy.InitialReputation,
		Day:              1,
		Patients:         []patient.Patient{},
		UnlockedDiseases: tables.InitialUnlocked(),
		Upgrades:         InitialUpgrades(b.Upgrades),
		Achievements:     make([]Achievement, 0, len(tables.Achievements)),
		Statistics:       Statistics{HighestLevel: 1},
	}
	for _, def := range tables.Achievements {
		s.Achievements = append(s.Achievements, Achievement{AchievementDef: def})
	}
	return s
}

// Clone returns a deep copy. Diagnosis pointers are shared since catalog
// entries are immutable.
func (s GameState) Clone() GameState {
	c := s
	c.Patients = slices.Clone(s.Patients)
	c.UnlockedDiseases = slices.Clone(s.UnlockedDiseases)
	c.Achievements = slices.Clone(s.Achievements)
	return c
}

// FindPatient returns the index of the patient with id, or -1.
func (s *GameState) FindPatient(id string) int {
	for i := range s.Patients {
		if s.Patients[i].ID == id {
			return i
		}
	}
	return -1
}

// Patient returns a copy of the patient with id.
func (s *GameState) Patient(id string) (patient.Patient, bool) {
	if i := s.FindPatient(id); i >= 0 {
		return s.Patients[i], true
	}
	return patient.Patient{}, false
}

// ActiveCount counts non-terminal patients.
func (s *GameState) ActiveCount() int {
	n := 0
	for i := range s.Patients {
		if s.Patients[i].Active() {
			n++
		}
	}
	return n
}

// IsUnlocked reports whether a diagnosis id may be assigned to new patients.
func (s *GameState) IsUnlocked(id string) bool {
	return slices.Contains(s.UnlockedDiseases, id)
}

// Achievement returns the achievement with id.
func (s *GameState) Achievement(id string) (Achievement, bool) {
	for _, a := range s.Achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}
