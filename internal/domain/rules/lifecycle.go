package rules

import (
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
)

// stepPatient applies fn to the patient with id if the session is playing and
// the patient is currently in status from. It works on a clone.
func stepPatient(s clinic.GameState, id string, from patient.Status, fn func(st *clinic.GameState, p *patient.Patient)) (clinic.GameState, bool) {
	if s.Phase != clinic.PhasePlaying {
		return s, false
	}
	i := s.FindPatient(id)
	if i < 0 || s.Patients[i].Status != from {
		return s, false
	}
	next := s.Clone()
	fn(&next, &next.Patients[i])
	return next, true
}

// AcceptPatient moves a waiting patient to the diagnosis desk.
func AcceptPatient(s clinic.GameState, id string) (clinic.GameState, bool) {
	return stepPatient(s, id, patient.StatusWaiting, func(_ *clinic.GameState, p *patient.Patient) {
		p.Status = patient.StatusDiagnosing
	})
}

// CompleteDiagnosis records the diagnosis mini-game and sends the patient to
// the pharmacy. The result never blocks the transition; a perfect score only
// feeds statistics.
func CompleteDiagnosis(s clinic.GameState, id string, result patient.MiniGameResult, b content.Balance) (clinic.GameState, bool) {
	return stepPatient(s, id, patient.StatusDiagnosing, func(st *clinic.GameState, p *patient.Patient) {
		p.Progress.DiagnosisComplete = true
		p.Status = patient.StatusPharmacy
		if result.Score >= b.Stations.PerfectScore {
			st.Statistics.PerfectDiagnoses++
		}
	})
}

// CompletePharmacy records the prescription and routes the patient to
// acupuncture when the diagnosis lists treatment points, else to serving.
func CompletePharmacy(s clinic.GameState, id string, _ patient.MiniGameResult) (clinic.GameState, bool) {
	return stepPatient(s, id, patient.StatusPharmacy, func(st *clinic.GameState, p *patient.Patient) {
		p.Progress.PharmacyComplete = true
		if p.NeedsTreatment() {
			p.Status = patient.StatusAcupuncture
		} else {
			p.Status = patient.StatusServing
		}
		st.Statistics.PharmacyCompletions++
	})
}

// CompleteAcupuncture records the needle session and readies the patient to
// be served.
func CompleteAcupuncture(s clinic.GameState, id string, result patient.MiniGameResult, b content.Balance) (clinic.GameState, bool) {
	return stepPatient(s, id, patient.StatusAcupuncture, func(st *clinic.GameState, p *patient.Patient) {
		p.Progress.AcupunctureComplete = true
		p.Status = patient.StatusServing
		if result.Score >= b.Stations.PerfectScore {
			st.Statistics.PerfectAcupunctures++
		}
	})
}
