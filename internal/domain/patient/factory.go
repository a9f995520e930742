package patient

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
)

// Picker is the randomness the factory needs. *rand.Rand from math/rand/v2
// satisfies it.
type Picker interface {
	IntN(n int) int
}

// Factory builds new patients. Identifiers come from a counter owned by the
// factory, so they stay unique for as long as the factory lives, across any
// number of session resets.
type Factory struct {
	tables *content.Tables
	rng    Picker
	now    func() time.Time
	seq    atomic.Uint64
}

// NewFactory creates a factory over the given tables. A nil clock uses
// time.Now.
func NewFactory(tables *content.Tables, rng Picker, now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{tables: tables, rng: rng, now: now}
}

// Spawn generates one waiting patient with a diagnosis drawn uniformly from
// the catalog entries listed in unlocked. When no entry matches, the whole
// catalog is eligible.
func (f *Factory) Spawn(unlocked []string) Patient {
	pool := f.eligible(unlocked)
	d := pool[f.rng.IntN(len(pool))]

	id := f.seq.Add(1)
	return Patient{
		ID:        fmt.Sprintf("P%d", id),
		Name:      f.tables.Names[f.rng.IntN(len(f.tables.Names))],
		Avatar:    f.tables.Avatars[f.rng.IntN(len(f.tables.Avatars))],
		Diagnosis: d,
		Patience:  MaxPatience,
		OrderTime: f.now(),
		Status:    StatusWaiting,
	}
}

// Issued returns how many identifiers the factory has handed out.
func (f *Factory) Issued() uint64 {
	return f.seq.Load()
}

func (f *Factory) eligible(unlocked []string) []*content.Diagnosis {
	pool := make([]*content.Diagnosis, 0, len(unlocked))
	for _, id := range unlocked {
		if d, ok := f.tables.Diagnosis(id); ok {
			pool = append(pool, d)
		}
	}
	if len(pool) > 0 {
		return pool
	}
	pool = pool[:0]
	for i := range f.tables.Diagnoses {
		pool = append(pool, &f.tables.Diagnoses[i])
	}
	return pool
}
