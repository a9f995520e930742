// Package content holds the static tables the clinic runs on: the diagnosis
// catalog, patient name and avatar pools, achievement definitions and the
// balance constants.
package content

// Diagnosis is an immutable catalog entry. Patients share a pointer to it.
type Diagnosis struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Symptoms        []string `yaml:"symptoms" json:"symptoms"`
	Remedies        []string `yaml:"remedies" json:"remedies"`
	TreatmentPoints []string `yaml:"treatmentPoints,omitempty" json:"treatmentPoints,omitempty"`
}

// NeedsTreatment reports whether patients with this diagnosis visit the
// acupuncture station after the pharmacy.
func (d *Diagnosis) NeedsTreatment() bool {
	return d != nil && len(d.TreatmentPoints) > 0
}

// Metric names the statistic an achievement is measured against.
type Metric string

const (
	MetricPatientsServed      Metric = "patientsServed"
	MetricPerfectTreatments   Metric = "perfectTreatments"
	MetricMaxCombo            Metric = "maxCombo"
	MetricFastTreatments      Metric = "fastTreatments"
	MetricCoinsEarned         Metric = "coinsEarned"
	MetricReputation          Metric = "reputation"
	MetricLevel               Metric = "level"
	MetricPerfectDiagnoses    Metric = "perfectDiagnoses"
	MetricPharmacyCompletions Metric = "pharmacyCompletions"
	MetricPerfectAcupuncture  Metric = "perfectAcupuncture"
	MetricPerfectDays         Metric = "perfectDays"
	MetricUpgradesMaxed       Metric = "upgradesMaxed"
)

var knownMetrics = map[Metric]bool{
	MetricPatientsServed:      true,
	MetricPerfectTreatments:   true,
	MetricMaxCombo:            true,
	MetricFastTreatments:      true,
	MetricCoinsEarned:         true,
	MetricReputation:          true,
	MetricLevel:               true,
	MetricPerfectDiagnoses:    true,
	MetricPharmacyCompletions: true,
	MetricPerfectAcupuncture:  true,
	MetricPerfectDays:         true,
	MetricUpgradesMaxed:       true,
}

// Known reports whether m is a metric the achievement tracker can measure.
func (m Metric) Known() bool {
	return knownMetrics[m]
}

// AchievementDef describes an achievement before any progress is recorded.
type AchievementDef struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	Metric      Metric `yaml:"metric" json:"metric"`
	Target      int    `yaml:"target" json:"target"`
}

// Tables is the full, versioned content bundle. It is read-only once loaded.
type Tables struct {
	Version      string           `yaml:"version" json:"version"`
	Diagnoses    []Diagnosis      `yaml:"diagnoses" json:"diagnoses"`
	Names        []string         `yaml:"names" json:"names"`
	Avatars      []string         `yaml:"avatars" json:"avatars"`
	Achievements []AchievementDef `yaml:"achievements" json:"achievements"`
	Balance      Balance          `yaml:"balance" json:"balance"`
}

// Diagnosis returns the catalog entry with the given id.
func (t *Tables) Diagnosis(id string) (*Diagnosis, bool) {
	for i := range t.Diagnoses {
		if t.Diagnoses[i].ID == id {
			return &t.Diagnoses[i], true
		}
	}
	return nil, false
}

// InitialUnlocked lists the diagnosis ids available at the start of a run.
func (t *Tables) InitialUnlocked() []string {
	n := min(max(t.Balance.Progression.InitialUnlocked, 0), len(t.Diagnoses))
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, t.Diagnoses[i].ID)
	}
	return ids
}
