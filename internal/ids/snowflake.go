// Package ids generates process-unique connection identifiers.
package ids

import (
	"fmt"
	"sync"
	"time"
)

const (
	machineBits = 10
	seqBits     = 12

	maxMachineID = 1<<machineBits - 1
	maxSeq       = 1<<seqBits - 1

	timeShift    = machineBits + seqBits
	machineShift = seqBits

	// epochMillis anchors the timestamp component so IDs stay well inside
	// the 64-bit range for decades; the exact value is arbitrary.
	epochMillis = 1685290942000
)

// ConnectionID uniquely identifies one peer session for the life of the process.
type ConnectionID uint64

// ErrExceededMaximumLimit is returned by NewGenerator when machineID is out of range.
type ErrExceededMaximumLimit struct {
	MachineID uint64
}

func (e *ErrExceededMaximumLimit) Error() string {
	return fmt.Sprintf("machine_id %d exceeds maximum limit %d", e.MachineID, maxMachineID)
}

// Generator produces monotonically increasing ConnectionIDs composed of
// (millis_since_epoch << 22) | (machine_id << 12) | sequence.
type Generator struct {
	mu        sync.Mutex
	machineID uint64
	latestTS  uint64
	seq       uint64

	now func() time.Time // overridable for tests
}

// NewGenerator validates machineID and returns a ready Generator.
func NewGenerator(machineID uint64) (*Generator, error) {
	if machineID > maxMachineID {
		return nil, &ErrExceededMaximumLimit{MachineID: machineID}
	}
	return &Generator{machineID: machineID, now: time.Now}, nil
}

func (g *Generator) currentTS() uint64 {
	return uint64(g.now().UnixMilli()) - epochMillis
}

// Next returns the next connection ID. It spins internally while the clock
// has regressed or the per-millisecond sequence space is exhausted; both
// conditions are expected to clear as wall-clock time advances.
func (g *Generator) Next() ConnectionID {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		now := g.currentTS()
		if now < g.latestTS {
			continue
		}

		var next uint64
		if now == g.latestTS {
			next = g.seq + 1
			if next > maxSeq {
				continue
			}
		} else {
			next = 0
		}

		g.latestTS = now
		g.seq = next

		return ConnectionID(now<<timeShift | g.machineID<<machineShift | next)
	}
}
