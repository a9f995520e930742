package network

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MRamiBalles/CyberClinic/server/internal/events"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/logger"
)

// ReplayHandler serves the in-memory journal for post-game review.
type ReplayHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewReplayHandler creates a new journal replay handler.
func NewReplayHandler(el *events.EventLog, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{eventLog: el, logger: log}
}

// ReplayEvent is an event decorated for display.
type ReplayEvent struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
	GameDay   int    `json:"game_day"`
	Type      string `json:"type"`
	Actor     string `json:"actor"`
	Target    string `json:"target,omitempty"`
	Summary   string `json:"summary"`
	Impact    string `json:"impact"`
	Payload   any    `json:"payload,omitempty"`
}

// ReplayResponse is the API response for a journal query.
type ReplayResponse struct {
	RunID       string        `json:"run_id,omitempty"`
	TotalEvents int           `json:"total_events"`
	FilteredBy  []string      `json:"filtered_by,omitempty"`
	GeneratedAt string        `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// HandleReplay returns journal events.
// GET /api/journal?run_id=X&day=N&type=PATIENT_SERVED&actor=PLAYER&target=P3
func (rh *ReplayHandler) HandleReplay(c *gin.Context) {
	runID := c.Query("run_id")
	eventType := c.Query("type")
	actor := c.Query("actor")
	target := c.Query("target")

	day := -1
	if dayStr := c.Query("day"); dayStr != "" {
		d, err := strconv.Atoi(dayStr)
		if err != nil || d < 1 {
			jsonError(c, http.StatusBadRequest, "day must be a positive integer")
			return
		}
		day = d
	}

	var filters []string
	for name, v := range map[string]string{"run_id": runID, "type": eventType, "actor": actor, "target": target} {
		if v != "" {
			filters = append(filters, name+"="+v)
		}
	}
	if day > 0 {
		filters = append(filters, "day="+strconv.Itoa(day))
	}
	slices.Sort(filters)

	replayEvents := make([]ReplayEvent, 0)
	for _, e := range rh.eventLog.Replay() {
		if runID != "" && e.RunID != runID {
			continue
		}
		if day > 0 && e.GameDay != day {
			continue
		}
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		if actor != "" && e.ActorID != actor {
			continue
		}
		if target != "" && e.TargetID != target {
			continue
		}
		replayEvents = append(replayEvents, toReplayEvent(e))
	}

	rh.logger.Debug("journal replay served", "events", len(replayEvents), "filters", filters)
	c.JSON(http.StatusOK, ReplayResponse{
		RunID:       runID,
		TotalEvents: len(replayEvents),
		FilteredBy:  filters,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      replayEvents,
	})
}

// HandleEventDetail returns one journal event.
// GET /api/journal/events/:id
func (rh *ReplayHandler) HandleEventDetail(c *gin.Context) {
	eventID := c.Param("id")
	for _, e := range rh.eventLog.Replay() {
		if e.ID == eventID {
			c.JSON(http.StatusOK, toReplayEvent(e))
			return
		}
	}
	jsonError(c, http.StatusNotFound, "event not found")
}

// HandleStats returns aggregate counts over the journal.
// GET /api/journal/stats?run_id=X
func (rh *ReplayHandler) HandleStats(c *gin.Context) {
	runID := c.Query("run_id")
	byType := make(map[string]int)
	stats := map[string]int{
		"total_events":     0,
		"patients_served":  0,
		"patients_failed":  0,
		"level_ups":        0,
		"achievements":     0,
		"upgrades":         0,
		"player_commands":  0,
		"scheduler_events": 0,
	}

	for _, e := range rh.eventLog.Replay() {
		if runID != "" && e.RunID != runID {
			continue
		}
		stats["total_events"]++
		byType[string(e.Type)]++
		switch e.Type {
		case events.EventTypePatientServed:
			stats["patients_served"]++
		case events.EventTypePatientFailed:
			stats["patients_failed"]++
		case events.EventTypeLevelUp:
			stats["level_ups"]++
		case events.EventTypeAchievementUnlocked:
			stats["achievements"]++
		case events.EventTypeUpgradePurchased:
			stats["upgrades"]++
		}
		if e.ActorID == events.ActorPlayer {
			stats["player_commands"]++
		} else {
			stats["scheduler_events"]++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
		"by_type":      byType,
	})
}

// RegisterRoutes sets up the journal routes.
func (rh *ReplayHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/journal", rh.HandleReplay)
	r.GET("/journal/stats", rh.HandleStats)
	r.GET("/journal/events/:id", rh.HandleEventDetail)
}

func toReplayEvent(e events.GameEvent) ReplayEvent {
	return ReplayEvent{
		ID:        e.ID,
		RunID:     e.RunID,
		Timestamp: e.Timestamp.Format("15:04:05"),
		GameDay:   e.GameDay,
		Type:      string(e.Type),
		Actor:     e.ActorID,
		Target:    e.TargetID,
		Summary:   summarizeEvent(e),
		Impact:    determineImpact(e),
		Payload:   e.Payload,
	}
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e events.GameEvent) string {
	switch e.Type {
	case events.EventTypePhaseChanged:
		return "The clinic changed phase."
	case events.EventTypeStationSwitched:
		return "The doctor moved to another station."
	case events.EventTypePatientSpawned:
		return "A new patient walked in."
	case events.EventTypePatientStatusChanged:
		return "A patient moved along the treatment line."
	case events.EventTypePatientServed:
		return "A patient was treated and sent home."
	case events.EventTypePatientFailed:
		return "A patient ran out of patience and left."
	case events.EventTypeLevelUp:
		return "The clinic reached a new level."
	case events.EventTypeDiseaseUnlocked:
		return "A new condition can now walk through the door."
	case events.EventTypeUpgradePurchased:
		return "The clinic bought an upgrade."
	case events.EventTypeAchievementUnlocked:
		return "An achievement was unlocked."
	case events.EventTypeExperienceGranted:
		return "Bonus experience was granted."
	case events.EventTypeDayAdvanced:
		return "A new day began."
	case events.EventTypeRunFinished:
		return "The run is over."
	default:
		return "Something happened."
	}
}

// determineImpact classifies the event impact.
func determineImpact(e events.GameEvent) string {
	switch e.Type {
	case events.EventTypePatientFailed, events.EventTypeRunFinished:
		return "NEGATIVE"
	case events.EventTypePatientServed, events.EventTypeLevelUp, events.EventTypeDiseaseUnlocked,
		events.EventTypeUpgradePurchased, events.EventTypeAchievementUnlocked, events.EventTypeExperienceGranted:
		return "POSITIVE"
	default:
		return "NEUTRAL"
	}
}
