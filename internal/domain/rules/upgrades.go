package rules

import (
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
)

// Quote is the price of the next step on an upgrade track.
type Quote struct {
	Kind       clinic.UpgradeKind `json:"kind"`
	Level      int                `json:"level"`
	Next       int                `json:"next"`
	Cost       int                `json:"cost"`
	Maxed      bool               `json:"maxed"`
	Affordable bool               `json:"affordable"`
}

// QuoteUpgrade prices the next purchase of kind from the configured cost
// table. A maxed track quotes zero and is never affordable; so does an
// unknown kind.
func QuoteUpgrade(s clinic.GameState, kind clinic.UpgradeKind, tracks content.UpgradeTracks) Quote {
	if !kind.Valid() {
		return Quote{Kind: kind}
	}
	tr := kind.Track(tracks)
	lvl := s.Upgrades.Level(kind)
	q := Quote{Kind: kind, Level: lvl, Next: lvl}
	if lvl >= tr.Max {
		q.Maxed = true
		return q
	}
	q.Next = tr.Clamp(lvl + tr.Step)
	if idx := (lvl - tr.Min) / tr.Step; idx >= 0 && idx < len(tr.Costs) {
		q.Cost = tr.Costs[idx]
	}
	q.Affordable = s.Coins >= q.Cost
	return q
}

// UpgradeClinic buys one step of kind for cost. It is rejected when coins do
// not cover cost or the track is already at its maximum. Upgrades can be
// bought while playing or paused.
func UpgradeClinic(s clinic.GameState, kind clinic.UpgradeKind, cost int, tracks content.UpgradeTracks) (clinic.GameState, bool) {
	if !kind.Valid() || (s.Phase != clinic.PhasePlaying && s.Phase != clinic.PhasePaused) {
		return s, false
	}
	tr := kind.Track(tracks)
	lvl := s.Upgrades.Level(kind)
	if cost < 0 || s.Coins < cost || lvl >= tr.Max {
		return s, false
	}
	next := s.Clone()
	next.Coins -= cost
	next.Upgrades = next.Upgrades.WithLevel(kind, tr.Clamp(lvl+tr.Step))
	return next, true
}

// PurchaseUpgrade buys the next step of kind at its quoted price.
func PurchaseUpgrade(s clinic.GameState, kind clinic.UpgradeKind, tracks content.UpgradeTracks) (clinic.GameState, bool) {
	q := QuoteUpgrade(s, kind, tracks)
	if q.Maxed || !kind.Valid() {
		return s, false
	}
	return UpgradeClinic(s, kind, q.Cost, tracks)
}
