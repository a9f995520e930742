package network

import (
	"encoding/json"
	"time"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
)

// MessageType tags an outgoing websocket envelope.
type MessageType string

const (
	MsgTypeEvent         MessageType = "EVENT"
	MsgTypeSnapshot      MessageType = "SNAPSHOT"
	MsgTypeCommandResult MessageType = "COMMAND_RESULT"
	MsgTypeError         MessageType = "ERROR"
)

// Message is the envelope for every server to client frame.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// SnapshotPayload is the body of a SNAPSHOT message.
type SnapshotPayload struct {
	RunID              string           `json:"run_id"`
	DiagnosisTimeLimit int              `json:"diagnosis_time_limit"`
	State              clinic.GameState `json:"state"`
}

func encode(t MessageType, payload any) ([]byte, error) {
	return json.Marshal(Message{Type: t, Timestamp: time.Now().Unix(), Payload: payload})
}

func eventMessage(e events.GameEvent) ([]byte, error) {
	return encode(MsgTypeEvent, e)
}

func snapshotMessage(ctrl Controller) ([]byte, error) {
	return encode(MsgTypeSnapshot, SnapshotPayload{
		RunID:              ctrl.RunID(),
		DiagnosisTimeLimit: ctrl.DiagnosisTimeLimit(),
		State:              ctrl.Snapshot(),
	})
}
