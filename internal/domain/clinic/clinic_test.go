package clinic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
)

func TestNewStartsInMenu(t *testing.T) {
	tables := content.MustDefault()
	s := New(tables)

	assert.Equal(t, PhaseMenu, s.Phase)
	assert.Equal(t, StationOrder, s.CurrentStation)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, 100, s.ExpToNextLevel)
	assert.Equal(t, 500, s.Coins)
	assert.Equal(t, 1, s.Day)
	assert.Empty(t, s.Patients)
	assert.Len(t, s.UnlockedDiseases, 5)
	assert.Equal(t, Upgrades{DiagnosisSpeed: 1, PharmacySlots: 2, PatienceBoost: 0, CoinMultiplierPct: 100}, s.Upgrades)
	assert.Len(t, s.Achievements, len(tables.Achievements))
	for _, a := range s.Achievements {
		assert.False(t, a.Unlocked)
		assert.True(t, a.UnlockedAt.IsZero())
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := New(content.MustDefault())
	s.Patients = append(s.Patients, patient.Patient{ID: "P1", Patience: 100, Status: patient.StatusWaiting})

	c := s.Clone()
	c.Patients[0].Patience = 10
	c.UnlockedDiseases[0] = "X"
	c.Achievements[0].Unlocked = true

	assert.Equal(t, 100.0, s.Patients[0].Patience)
	assert.NotEqual(t, "X", s.UnlockedDiseases[0])
	assert.False(t, s.Achievements[0].Unlocked)
}

func TestPatientLookups(t *testing.T) {
	s := New(content.MustDefault())
	s.Patients = []patient.Patient{
		{ID: "P1", Status: patient.StatusCompleted},
		{ID: "P2", Status: patient.StatusDiagnosing},
		{ID: "P3", Status: patient.StatusFailed},
		{ID: "P4", Status: patient.StatusWaiting},
	}

	assert.Equal(t, 1, s.FindPatient("P2"))
	assert.Equal(t, -1, s.FindPatient("P9"))
	assert.Equal(t, 2, s.ActiveCount())

	p, ok := s.Patient("P4")
	require.True(t, ok)
	assert.Equal(t, patient.StatusWaiting, p.Status)

	assert.True(t, s.IsUnlocked("D001"))
	assert.False(t, s.IsUnlocked("D011"))
}

func TestUpgradeKinds(t *testing.T) {
	tracks := content.MustDefault().Balance.Upgrades
	u := InitialUpgrades(tracks)

	for _, k := range UpgradeKinds {
		parsed, err := ParseUpgradeKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
		assert.Equal(t, k.Track(tracks).Min, u.Level(k))

		raised := u.WithLevel(k, k.Track(tracks).Max)
		assert.Equal(t, k.Track(tracks).Max, raised.Level(k))
	}

	_, err := ParseUpgradeKind("laserScalpel")
	assert.Error(t, err)

	assert.Equal(t, 1.0, u.CoinMultiplier())
	assert.Equal(t, 1.4, u.WithLevel(UpgradeCoinMultiplier, 140).CoinMultiplier())
	assert.Equal(t, 0, u.MaxedCount(tracks))

	maxed := u
	for _, k := range UpgradeKinds {
		maxed = maxed.WithLevel(k, k.Track(tracks).Max)
	}
	assert.Equal(t, len(UpgradeKinds), maxed.MaxedCount(tracks))
}

func TestStationValid(t *testing.T) {
	assert.True(t, StationPharmacy.Valid())
	assert.False(t, Station("lobby").Valid())
}
