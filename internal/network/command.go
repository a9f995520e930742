package network

import (
	"errors"
	"fmt"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/rules"
)

// Controller is the session surface the transport drives. *engine.Engine
// satisfies it.
type Controller interface {
	StartGame() bool
	PauseGame() bool
	ResumeGame() bool
	EndGame() bool
	SwitchStation(station clinic.Station) bool
	AcceptPatient(id string) bool
	CompleteDiagnosis(id string, result patient.MiniGameResult) bool
	CompletePharmacy(id string, result patient.MiniGameResult) bool
	CompleteAcupuncture(id string, result patient.MiniGameResult) bool
	ServePatient(id string) bool
	UpgradeClinic(kind clinic.UpgradeKind, cost int) bool
	PurchaseUpgrade(kind clinic.UpgradeKind) bool
	QuoteUpgrade(kind clinic.UpgradeKind) rules.Quote
	AddExperience(amount int) bool
	DiagnosisTimeLimit() int
	Snapshot() clinic.GameState
	RunID() string
}

// CommandType names a player command.
type CommandType string

const (
	CmdStartGame           CommandType = "START_GAME"
	CmdPauseGame           CommandType = "PAUSE_GAME"
	CmdResumeGame          CommandType = "RESUME_GAME"
	CmdEndGame             CommandType = "END_GAME"
	CmdSwitchStation       CommandType = "SWITCH_STATION"
	CmdAcceptPatient       CommandType = "ACCEPT_PATIENT"
	CmdCompleteDiagnosis   CommandType = "COMPLETE_DIAGNOSIS"
	CmdCompletePharmacy    CommandType = "COMPLETE_PHARMACY"
	CmdCompleteAcupuncture CommandType = "COMPLETE_ACUPUNCTURE"
	CmdServePatient        CommandType = "SERVE_PATIENT"
	CmdUpgradeClinic       CommandType = "UPGRADE_CLINIC"
	CmdPurchaseUpgrade     CommandType = "PURCHASE_UPGRADE"
	CmdAddExperience       CommandType = "ADD_EXPERIENCE"
)

// Command is an incoming player command from the websocket or REST API.
type Command struct {
	Type      CommandType             `json:"type"`
	PatientID string                  `json:"patient_id,omitempty"`
	Station   clinic.Station          `json:"station,omitempty"`
	Upgrade   string                  `json:"upgrade,omitempty"`
	Cost      int                     `json:"cost,omitempty"`
	Amount    int                     `json:"amount,omitempty"`
	Result    *patient.MiniGameResult `json:"result,omitempty"`
}

// CommandResult reports the outcome of one command. A rejected command is
// not an error: Applied is false and the state is unchanged.
type CommandResult struct {
	Type    CommandType `json:"type"`
	Applied bool        `json:"applied"`
	Error   string      `json:"error,omitempty"`
}

// ErrMalformedCommand wraps every command that cannot be routed.
var ErrMalformedCommand = errors.New("malformed command")

// Dispatch routes cmd to ctrl. It returns an error only for commands that
// are structurally wrong (unknown type, missing fields); gameplay
// rejections come back as applied == false.
func Dispatch(ctrl Controller, cmd Command) (bool, error) {
	needPatient := func() error {
		if cmd.PatientID == "" {
			return fmt.Errorf("%w: %s needs patient_id", ErrMalformedCommand, cmd.Type)
		}
		return nil
	}
	result := func() patient.MiniGameResult {
		if cmd.Result == nil {
			return patient.MiniGameResult{}
		}
		return *cmd.Result
	}

	switch cmd.Type {
	case CmdStartGame:
		return ctrl.StartGame(), nil
	case CmdPauseGame:
		return ctrl.PauseGame(), nil
	case CmdResumeGame:
		return ctrl.ResumeGame(), nil
	case CmdEndGame:
		return ctrl.EndGame(), nil
	case CmdSwitchStation:
		if !cmd.Station.Valid() {
			return false, fmt.Errorf("%w: unknown station %q", ErrMalformedCommand, cmd.Station)
		}
		return ctrl.SwitchStation(cmd.Station), nil
	case CmdAcceptPatient:
		if err := needPatient(); err != nil {
			return false, err
		}
		return ctrl.AcceptPatient(cmd.PatientID), nil
	case CmdCompleteDiagnosis:
		if err := needPatient(); err != nil {
			return false, err
		}
		return ctrl.CompleteDiagnosis(cmd.PatientID, result()), nil
	case CmdCompletePharmacy:
		if err := needPatient(); err != nil {
			return false, err
		}
		return ctrl.CompletePharmacy(cmd.PatientID, result()), nil
	case CmdCompleteAcupuncture:
		if err := needPatient(); err != nil {
			return false, err
		}
		return ctrl.CompleteAcupuncture(cmd.PatientID, result()), nil
	case CmdServePatient:
		if err := needPatient(); err != nil {
			return false, err
		}
		return ctrl.ServePatient(cmd.PatientID), nil
	case CmdUpgradeClinic, CmdPurchaseUpgrade:
		kind, err := clinic.ParseUpgradeKind(cmd.Upgrade)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
		}
		if cmd.Type == CmdPurchaseUpgrade {
			return ctrl.PurchaseUpgrade(kind), nil
		}
		return ctrl.UpgradeClinic(kind, cmd.Cost), nil
	case CmdAddExperience:
		return ctrl.AddExperience(cmd.Amount), nil
	default:
		return false, fmt.Errorf("%w: unknown type %q", ErrMalformedCommand, cmd.Type)
	}
}
