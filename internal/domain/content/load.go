package content

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTables []byte

// ErrInvalidCatalog is wrapped by every validation failure.
var ErrInvalidCatalog = errors.New("invalid content tables")

// Default returns the tables shipped with the server.
func Default() (*Tables, error) {
	return Parse(defaultTables)
}

// MustDefault is Default for callers that cannot recover from broken
// embedded content (tests, tools).
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads and validates a YAML content file. An empty path yields the
// embedded defaults.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("content file %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates YAML content. Unknown keys are rejected so a
// typo in a balance file never silently falls back to zero.
func Parse(data []byte) (*Tables, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Tables
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode content tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the catalog invariants and returns every problem found.
func (t *Tables) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if t.Version == "" {
		fail("version is required")
	}
	if len(t.Diagnoses) == 0 {
		fail("catalog has no diagnoses")
	}
	seen := make(map[string]bool, len(t.Diagnoses))
	for i, d := range t.Diagnoses {
		if d.ID == "" {
			fail("diagnosis #%d has no id", i)
			continue
		}
		if seen[d.ID] {
			fail("duplicate diagnosis id %s", d.ID)
		}
		seen[d.ID] = true
		if len(d.Symptoms) == 0 {
			fail("diagnosis %s has no symptoms", d.ID)
		}
		if len(d.Remedies) == 0 {
			fail("diagnosis %s has no remedies", d.ID)
		}
	}
	if len(t.Names) == 0 {
		fail("name pool is empty")
	}
	if len(t.Avatars) == 0 {
		fail("avatar pool is empty")
	}
	achIDs := make(map[string]bool, len(t.Achievements))
	for _, a := range t.Achievements {
		if achIDs[a.ID] {
			fail("duplicate achievement id %s", a.ID)
		}
		achIDs[a.ID] = true
		if !a.Metric.Known() {
			fail("achievement %s uses unknown metric %q", a.ID, a.Metric)
		}
		if a.Target <= 0 {
			fail("achievement %s needs a positive target", a.ID)
		}
	}

	b := t.Balance
	if b.Patience.DecayRate <= 0 {
		fail("patience.decayRate must be positive")
	}
	if b.Patience.DecayInterval <= 0 {
		fail("patience.decayInterval must be positive")
	}
	if b.Spawning.IntervalFallback <= 0 {
		fail("spawning.intervalFallback must be positive")
	}
	if b.Spawning.CapacityFallback <= 0 {
		fail("spawning.capacityFallback must be positive")
	}
	if b.Economy.Rewards.LargeAbove < b.Economy.Rewards.MediumAbove {
		fail("rewards.largeAbove must not be below rewards.mediumAbove")
	}
	if b.Progression.InitialThreshold <= 0 {
		fail("progression.initialThreshold must be positive")
	}
	if b.Progression.ThresholdGrowth < 1 {
		fail("progression.thresholdGrowth must be at least 1")
	}
	if b.Progression.InitialUnlocked < 0 {
		fail("progression.initialUnlocked must not be negative")
	}
	if b.Stations.DiagnosisTimeLimitFallback <= 0 {
		fail("stations.diagnosisTimeLimitFallback must be positive")
	}
	if b.Progression.ExperienceDivisor <= 0 {
		fail("progression.experienceDivisor must be positive")
	}
	if b.Session.DayLength <= 0 {
		fail("session.dayLength must be positive")
	}

	tracks := map[string]UpgradeTrack{
		"diagnosisSpeed": b.Upgrades.DiagnosisSpeed,
		"pharmacySlots":  b.Upgrades.PharmacySlots,
		"patienceBoost":  b.Upgrades.PatienceBoost,
		"coinMultiplier": b.Upgrades.CoinMultiplier,
	}
	for name, tr := range tracks {
		if tr.Step <= 0 || tr.Max < tr.Min {
			fail("upgrade %s has an empty or inverted range", name)
			continue
		}
		if (tr.Max-tr.Min)%tr.Step != 0 {
			fail("upgrade %s range is not a multiple of its step", name)
		}
		if len(tr.Costs) < tr.Purchases() {
			fail("upgrade %s lists %d costs for %d purchases", name, len(tr.Costs), tr.Purchases())
		}
	}
	if b.Upgrades.PatienceBoost.Max >= 100 {
		fail("upgrade patienceBoost must stay below 100 percent")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(errs...))
	}
	return nil
}
