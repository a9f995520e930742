package content

import "time"

// Balance groups every tunable gameplay constant.
type Balance struct {
	Economy     Economy       `yaml:"economy" json:"economy"`
	Patience    Patience      `yaml:"patience" json:"patience"`
	Spawning    Spawning      `yaml:"spawning" json:"spawning"`
	Progression Progression   `yaml:"progression" json:"progression"`
	Stations    Stations      `yaml:"stations" json:"stations"`
	Session     Session       `yaml:"session" json:"session"`
	Upgrades    UpgradeTracks `yaml:"upgrades" json:"upgrades"`
}

// Economy holds the starting purse and the serve reward tiers.
type Economy struct {
	InitialCoins      int         `yaml:"initialCoins" json:"initialCoins"`
	InitialReputation int         `yaml:"initialReputation" json:"initialReputation"`
	Rewards           RewardTiers `yaml:"rewards" json:"rewards"`
}

// RewardTiers maps a serve score to a coin delta. A score strictly above
// LargeAbove earns LargeBonus, strictly above MediumAbove earns MediumBonus,
// anything else pays Penalty (usually negative).
type RewardTiers struct {
	LargeAbove  float64 `yaml:"largeAbove" json:"largeAbove"`
	LargeBonus  int     `yaml:"largeBonus" json:"largeBonus"`
	MediumAbove float64 `yaml:"mediumAbove" json:"mediumAbove"`
	MediumBonus int     `yaml:"mediumBonus" json:"mediumBonus"`
	Penalty     int     `yaml:"penalty" json:"penalty"`
}

// Patience controls how fast waiting patients lose their temper.
type Patience struct {
	DecayRate     float64       `yaml:"decayRate" json:"decayRate"`
	DecayInterval time.Duration `yaml:"decayInterval" json:"decayInterval"`
}

// Spawning holds the per-level spawn cadence and capacity tables.
// Index 0 is level 1.
type Spawning struct {
	Intervals        []time.Duration `yaml:"intervals" json:"intervals"`
	IntervalFallback time.Duration   `yaml:"intervalFallback" json:"intervalFallback"`
	Capacity         []int           `yaml:"capacity" json:"capacity"`
	CapacityFallback int             `yaml:"capacityFallback" json:"capacityFallback"`
}

// Progression holds the experience curve and the content unlock cadence.
type Progression struct {
	InitialThreshold  int     `yaml:"initialThreshold" json:"initialThreshold"`
	ThresholdGrowth   float64 `yaml:"thresholdGrowth" json:"thresholdGrowth"`
	ExperienceBase    int     `yaml:"experienceBase" json:"experienceBase"`
	ExperienceDivisor int     `yaml:"experienceDivisor" json:"experienceDivisor"`
	UnlockEveryLevels int     `yaml:"unlockEveryLevels" json:"unlockEveryLevels"`
	InitialUnlocked   int     `yaml:"initialUnlocked" json:"initialUnlocked"`
}

// Stations holds the mini-game facing constants.
type Stations struct {
	DiagnosisTimeLimits        []int   `yaml:"diagnosisTimeLimits" json:"diagnosisTimeLimits"`
	DiagnosisTimeLimitFallback int     `yaml:"diagnosisTimeLimitFallback" json:"diagnosisTimeLimitFallback"`
	SpeedBonusPerLevel         float64 `yaml:"speedBonusPerLevel" json:"speedBonusPerLevel"`
	PerfectScore               float64 `yaml:"perfectScore" json:"perfectScore"`
}

// Session holds run-level rules: perfect and fast treatment thresholds, the
// length of an in-game day and the game-over policy.
type Session struct {
	PerfectTreatmentAbove float64       `yaml:"perfectTreatmentAbove" json:"perfectTreatmentAbove"`
	FastTreatment         time.Duration `yaml:"fastTreatment" json:"fastTreatment"`
	DayLength             time.Duration `yaml:"dayLength" json:"dayLength"`
	MaxFailedOrders       int           `yaml:"maxFailedOrders" json:"maxFailedOrders"`
}

// UpgradeTrack bounds one upgrade counter. Costs[i] is the price of the
// (i+1)-th purchase.
type UpgradeTrack struct {
	Min   int   `yaml:"min" json:"min"`
	Max   int   `yaml:"max" json:"max"`
	Step  int   `yaml:"step" json:"step"`
	Costs []int `yaml:"costs" json:"costs"`
}

// Purchases is the number of steps between Min and Max.
func (u UpgradeTrack) Purchases() int {
	if u.Step <= 0 {
		return 0
	}
	return (u.Max - u.Min) / u.Step
}

// Clamp bounds v to [Min, Max].
func (u UpgradeTrack) Clamp(v int) int {
	if v < u.Min {
		return u.Min
	}
	if v > u.Max {
		return u.Max
	}
	return v
}

// UpgradeTracks lists one track per clinic upgrade. CoinMultiplier is kept
// in percent.
type UpgradeTracks struct {
	DiagnosisSpeed UpgradeTrack `yaml:"diagnosisSpeed" json:"diagnosisSpeed"`
	PharmacySlots  UpgradeTrack `yaml:"pharmacySlots" json:"pharmacySlots"`
	PatienceBoost  UpgradeTrack `yaml:"patienceBoost" json:"patienceBoost"`
	CoinMultiplier UpgradeTrack `yaml:"coinMultiplier" json:"coinMultiplier"`
}

// SpawnInterval returns the spawn cadence for level, or the fallback when the
// level is outside the table.
func (b Balance) SpawnInterval(level int) time.Duration {
	if level >= 1 && level <= len(b.Spawning.Intervals) && b.Spawning.Intervals[level-1] > 0 {
		return b.Spawning.Intervals[level-1]
	}
	return b.Spawning.IntervalFallback
}

// Capacity returns how many active patients level allows at once.
func (b Balance) Capacity(level int) int {
	if level >= 1 && level <= len(b.Spawning.Capacity) && b.Spawning.Capacity[level-1] > 0 {
		return b.Spawning.Capacity[level-1]
	}
	return b.Spawning.CapacityFallback
}

// DiagnosisTimeLimit returns the base diagnosis mini-game limit in seconds.
func (b Balance) DiagnosisTimeLimit(level int) int {
	if level >= 1 && level <= len(b.Stations.DiagnosisTimeLimits) && b.Stations.DiagnosisTimeLimits[level-1] > 0 {
		return b.Stations.DiagnosisTimeLimits[level-1]
	}
	return b.Stations.DiagnosisTimeLimitFallback
}
