// Package engine owns the running clinic session. The Engine serializes
// player commands and scheduler ticks behind one lock, applies the pure
// reducers from package rules, and journals what changed to the EventLog.
//
// Time enters in two ways: Advance feeds an explicit duration (tests and
// replays), and Start enables a real-time driver that feeds wall-clock time
// while the clinic is open.
package engine
