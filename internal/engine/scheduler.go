package engine

import "time"

// TickKind names one of the two fixed-rate timers.
type TickKind int

const (
	TickDecay TickKind = iota
	TickSpawn
)

func (k TickKind) String() string {
	if k == TickSpawn {
		return "spawn"
	}
	return "decay"
}

// TickHandler receives the scheduler's output.
type TickHandler interface {
	// SpawnInterval is read before every step so level changes take effect
	// on the next spawn.
	SpawnInterval() time.Duration
	// Elapse reports playing time passing.
	Elapse(d time.Duration)
	// Tick fires one timer. Returning false stops the current advance, e.g.
	// because the session left the playing phase.
	Tick(kind TickKind) bool
}

// Scheduler is the tick source for the decay and spawn timers. It holds no
// clock of its own: time only moves through Advance, so tests drive it
// deterministically and the real-time driver feeds it wall-clock deltas.
type Scheduler struct {
	decayEvery time.Duration
	decayAcc   time.Duration
	spawnAcc   time.Duration
}

// NewScheduler creates a scheduler whose decay timer fires every decayEvery.
func NewScheduler(decayEvery time.Duration) *Scheduler {
	return &Scheduler{decayEvery: decayEvery}
}

// Reset re-establishes both timers from zero.
func (s *Scheduler) Reset() {
	s.decayAcc = 0
	s.spawnAcc = 0
}

// ResetSpawn restarts only the spawn timer.
func (s *Scheduler) ResetSpawn() {
	s.spawnAcc = 0
}

// Advance moves time forward by elapsed, firing timers in chronological
// order. When both timers fall due at the same instant decay fires first.
func (s *Scheduler) Advance(elapsed time.Duration, h TickHandler) {
	for elapsed > 0 {
		spawnEvery := h.SpawnInterval()
		untilDecay := s.decayEvery - s.decayAcc
		untilSpawn := spawnEvery - s.spawnAcc
		step := max(min(untilDecay, untilSpawn), 0)

		if step > elapsed {
			s.decayAcc += elapsed
			s.spawnAcc += elapsed
			h.Elapse(elapsed)
			return
		}

		s.decayAcc += step
		s.spawnAcc += step
		elapsed -= step
		if step > 0 {
			h.Elapse(step)
		}

		if s.decayAcc >= s.decayEvery {
			s.decayAcc = 0
			if !h.Tick(TickDecay) {
				return
			}
		}
		if s.spawnAcc >= spawnEvery {
			s.spawnAcc = 0
			if !h.Tick(TickSpawn) {
				return
			}
		}
	}
}
