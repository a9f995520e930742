// Package rules contains the pure reducers that move a clinic.GameState
// forward. Every exported operation takes a state by value and returns the
// next state plus whether anything was applied. A rejected call returns the
// input unchanged; callers never see a half-applied state.
// This package is PURE and must NOT import any infrastructure packages.
package rules
