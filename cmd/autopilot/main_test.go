package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
	"github.com/MRamiBalles/CyberClinic/server/internal/network"
)

func TestNextCommandsByPhase(t *testing.T) {
	for phase, want := range map[clinic.Phase]network.CommandType{
		clinic.PhaseMenu:     network.CmdStartGame,
		clinic.PhaseGameOver: network.CmdStartGame,
		clinic.PhasePaused:   network.CmdResumeGame,
	} {
		cmds := nextCommands(clinic.GameState{Phase: phase}, 100)
		require.Len(t, cmds, 1, phase)
		assert.Equal(t, want, cmds[0].Type, phase)
	}
}

func TestNextCommandsAdvanceEveryActivePatient(t *testing.T) {
	s := clinic.GameState{
		Phase: clinic.PhasePlaying,
		Patients: []patient.Patient{
			{ID: "P1", Status: patient.StatusWaiting},
			{ID: "P2", Status: patient.StatusDiagnosing},
			{ID: "P3", Status: patient.StatusPharmacy},
			{ID: "P4", Status: patient.StatusAcupuncture},
			{ID: "P5", Status: patient.StatusServing},
			{ID: "P6", Status: patient.StatusCompleted},
			{ID: "P7", Status: patient.StatusFailed},
		},
	}

	cmds := nextCommands(s, 85)

	require.Len(t, cmds, 5)
	types := []network.CommandType{
		network.CmdAcceptPatient,
		network.CmdCompleteDiagnosis,
		network.CmdCompletePharmacy,
		network.CmdCompleteAcupuncture,
		network.CmdServePatient,
	}
	for i, cmd := range cmds {
		assert.Equal(t, types[i], cmd.Type)
		assert.Equal(t, s.Patients[i].ID, cmd.PatientID)
	}
	require.NotNil(t, cmds[1].Result)
	assert.InDelta(t, 85, cmds[1].Result.Score, 0.001)
	assert.True(t, cmds[1].Result.Success)
}

func TestBuildReport(t *testing.T) {
	stats := &Stats{
		CommandsSent: 10,
		latencies:    []time.Duration{time.Millisecond, 3 * time.Millisecond},
		last:         clinic.GameState{Level: 2},
	}

	r := buildReport(stats, Config{TestDuration: 5 * time.Second})

	assert.InDelta(t, 2.0, r.Throughput, 0.001)
	assert.Equal(t, "2ms", r.AvgLatency)
	assert.Equal(t, "3ms", r.MaxLatency)
	assert.Equal(t, 2, r.FinalState.Level)
}
