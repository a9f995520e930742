// Package patient defines the patient record, its lifecycle statuses and the
// factory that generates new arrivals.
// This package is PURE and must NOT import any infrastructure packages.
package patient

import (
	"time"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
)

// MaxPatience is the starting and upper bound patience value.
const MaxPatience = 100.0

// Status is a patient's position in the treatment pipeline.
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusDiagnosing  Status = "diagnosing"
	StatusPharmacy    Status = "pharmacy"
	StatusAcupuncture Status = "acupuncture"
	StatusServing     Status = "serving"
	StatusCompleted   Status = "completed" // terminal
	StatusFailed      Status = "failed"    // terminal
)

// IsTerminal reports whether the status is absorbing.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress holds the per-station completion flags.
type Progress struct {
	DiagnosisComplete   bool `json:"diagnosisComplete"`
	PharmacyComplete    bool `json:"pharmacyComplete"`
	AcupunctureComplete bool `json:"acupunctureComplete"`
}

// Patient is one generated customer. Diagnosis points into the content
// tables and is never mutated.
type Patient struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Avatar    string             `json:"avatar"`
	Diagnosis *content.Diagnosis `json:"diagnosis"`
	Patience  float64            `json:"patience"` // 0-100
	OrderTime time.Time          `json:"orderTime"`
	Status    Status             `json:"status"`
	Progress  Progress           `json:"progress"`
}

// Active reports whether the patient still takes part in scheduling.
func (p *Patient) Active() bool {
	return !p.Status.IsTerminal()
}

// NeedsTreatment reports whether the pharmacy hands the patient over to
// acupuncture instead of straight to serving.
func (p *Patient) NeedsTreatment() bool {
	return p.Diagnosis.NeedsTreatment()
}

// MiniGameResult is what a station UI reports on completion.
type MiniGameResult struct {
	Success   bool    `json:"success"`
	Score     float64 `json:"score"` // 0-100
	TimeBonus float64 `json:"timeBonus"`
}
