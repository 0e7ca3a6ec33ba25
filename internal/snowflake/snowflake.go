// ABOUTME: Coarsely time-ordered 64-bit identifier allocation without coordination
// ABOUTME: High bits are elapsed milliseconds since a shared epoch, low 16 bits a process counter

package snowflake

import (
	"sync/atomic"
	"time"
)

const (
	// SequenceBits is the width of the per-process counter component.
	SequenceBits = 16
	sequenceMask = 1<<SequenceBits - 1
)

// DefaultEpoch is the reference instant used when none is configured.
var DefaultEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Generator hands out candidate identifiers. It performs no I/O and never
// fails. Two calls in the same millisecond on one Generator differ in the low
// bits; Generators in different processes may collide, and callers resolve that
// with a conditional write.
type Generator struct {
	epoch   time.Time
	counter atomic.Uint32
	now     func() time.Time
}

// New creates a Generator for the given epoch. A zero epoch selects DefaultEpoch.
func New(epoch time.Time) *Generator {
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}
	return &Generator{
		epoch: epoch,
		now:   time.Now,
	}
}

// Next returns a new candidate identifier.
func (g *Generator) Next() int64 {
	elapsed := g.now().Sub(g.epoch).Milliseconds()
	// Add returns the incremented value; subtract to start the sequence at 0.
	// The counter is unsigned and masked, so wrapping never touches the
	// timestamp bits.
	seq := uint64(g.counter.Add(1)-1) & sequenceMask
	return elapsed<<SequenceBits | int64(seq)
}

// Epoch returns the reference instant.
func (g *Generator) Epoch() time.Time {
	return g.epoch
}

// Time returns the creation instant encoded in id, relative to epoch.
func Time(id int64, epoch time.Time) time.Time {
	return epoch.Add(time.Duration(id>>SequenceBits) * time.Millisecond)
}

// Sequence returns the counter component of id.
func Sequence(id int64) uint16 {
	return uint16(id & sequenceMask)
}
