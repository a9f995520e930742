package clinic

import (
	"fmt"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
)

// UpgradeKind names one clinic upgrade track.
type UpgradeKind string

const (
	UpgradeDiagnosisSpeed UpgradeKind = "diagnosisSpeed"
	UpgradePharmacySlots  UpgradeKind = "pharmacySlots"
	UpgradePatienceBoost  UpgradeKind = "patienceBoost"
	UpgradeCoinMultiplier UpgradeKind = "coinMultiplier"
)

// UpgradeKinds lists every kind in display order.
var UpgradeKinds = []UpgradeKind{
	UpgradeDiagnosisSpeed,
	UpgradePharmacySlots,
	UpgradePatienceBoost,
	UpgradeCoinMultiplier,
}

// ParseUpgradeKind maps a wire name to its kind.
func ParseUpgradeKind(s string) (UpgradeKind, error) {
	for _, k := range UpgradeKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown upgrade kind %q", s)
}

// Valid reports whether k names one of the four tracks.
func (k UpgradeKind) Valid() bool {
	switch k {
	case UpgradeDiagnosisSpeed, UpgradePharmacySlots, UpgradePatienceBoost, UpgradeCoinMultiplier:
		return true
	}
	return false
}

// Track returns the bounds and costs configured for k. It panics on an
// invalid kind; callers check Valid first.
func (k UpgradeKind) Track(t content.UpgradeTracks) content.UpgradeTrack {
	switch k {
	case UpgradeDiagnosisSpeed:
		return t.DiagnosisSpeed
	case UpgradePharmacySlots:
		return t.PharmacySlots
	case UpgradePatienceBoost:
		return t.PatienceBoost
	case UpgradeCoinMultiplier:
		return t.CoinMultiplier
	}
	panic(fmt.Sprintf("clinic: unhandled upgrade kind %q", k))
}

// Upgrades holds the four independently leveled counters. The coin
// multiplier is kept in percent so steps of 0.2 stay exact.
type Upgrades struct {
	DiagnosisSpeed    int `json:"diagnosisSpeed"`    // 1-5
	PharmacySlots     int `json:"pharmacySlots"`     // 2-6
	PatienceBoost     int `json:"patienceBoost"`     // 0-50, percent
	CoinMultiplierPct int `json:"coinMultiplierPct"` // 100-200
}

// InitialUpgrades places every counter at the bottom of its track.
func InitialUpgrades(t content.UpgradeTracks) Upgrades {
	return Upgrades{
		DiagnosisSpeed:    t.DiagnosisSpeed.Min,
		PharmacySlots:     t.PharmacySlots.Min,
		PatienceBoost:     t.PatienceBoost.Min,
		CoinMultiplierPct: t.CoinMultiplier.Min,
	}
}

// Level returns the current value of k's counter.
func (u Upgrades) Level(k UpgradeKind) int {
	switch k {
	case UpgradeDiagnosisSpeed:
		return u.DiagnosisSpeed
	case UpgradePharmacySlots:
		return u.PharmacySlots
	case UpgradePatienceBoost:
		return u.PatienceBoost
	case UpgradeCoinMultiplier:
		return u.CoinMultiplierPct
	}
	panic(fmt.Sprintf("clinic: unhandled upgrade kind %q", k))
}

// WithLevel returns a copy of u with k's counter set to v.
func (u Upgrades) WithLevel(k UpgradeKind, v int) Upgrades {
	switch k {
	case UpgradeDiagnosisSpeed:
		u.DiagnosisSpeed = v
	case UpgradePharmacySlots:
		u.PharmacySlots = v
	case UpgradePatienceBoost:
		u.PatienceBoost = v
	case UpgradeCoinMultiplier:
		u.CoinMultiplierPct = v
	default:
		panic(fmt.Sprintf("clinic: unhandled upgrade kind %q", k))
	}
	return u
}

// CoinMultiplier returns the multiplier as a factor, e.g. 1.2.
func (u Upgrades) CoinMultiplier() float64 {
	return float64(u.CoinMultiplierPct) / 100
}

// MaxedCount reports how many tracks sit at their maximum.
func (u Upgrades) MaxedCount(t content.UpgradeTracks) int {
	n := 0
	for _, k := range UpgradeKinds {
		if u.Level(k) >= k.Track(t).Max {
			n++
		}
	}
	return n
}
