// Package region attaches to the simulator's shared memory records and to
// in-memory copies fed by the relay. Both satisfy Region so the layers above
// never know where the bytes came from.
package region

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/simlink/relay/pkg/rf2"
)

// ErrNotAttached is returned when a named mapping does not exist yet.
var ErrNotAttached = errors.New("region not attached")

// Region is one externally-mutated record.
type Region interface {
	Name() string
	Size() int
	// Version loads the begin/end counters without copying the record.
	Version() (begin, end uint32)
	// CopyTo copies the current bytes into dst and returns the count.
	CopyTo(dst []byte) int
	// Bytes exposes the live memory. Callers must not write to it.
	Bytes() []byte
	Close() error
}

const namePrefix = "$rFactor2SMMP_"

var recordNames = [4]string{"Scoring", "Telemetry", "Extended", "ForceFeedback"}

// Name returns the mapping name for a record type. A non-empty processID
// selects one of several concurrently running simulator instances.
func Name(t rf2.RecordType, processID string) string {
	if !t.Valid() {
		return ""
	}
	return namePrefix + recordNames[t] + "$" + processID
}

// Set holds one region per record type in rf2.RecordTypes order.
type Set [4]Region

// Close releases every region in the set.
func (s Set) Close() error {
	var errs []error
	for _, r := range s {
		if r == nil {
			continue
		}
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenSet attaches all four records. Records that cannot be attached are
// replaced by zeroed buffers so captures read "no data yet" instead of failing.
func OpenSet(processID string, logger *slog.Logger) Set {
	if logger == nil {
		logger = slog.Default()
	}
	var set Set
	for _, t := range rf2.RecordTypes {
		name := Name(t, processID)
		m, err := Open(name, rf2.Size(t))
		if err != nil {
			logger.Warn("Shared memory not available, using empty record", "name", name, "error", err)
			set[t] = NewBuffer(t)
			continue
		}
		logger.Debug("Attached shared memory", "name", name, "size", m.Size())
		set[t] = m
	}
	return set
}

// BufferSet builds four empty network-fed buffers.
func BufferSet() (Set, [4]*Buffer) {
	var set Set
	var bufs [4]*Buffer
	for _, t := range rf2.RecordTypes {
		bufs[t] = NewBuffer(t)
		set[t] = bufs[t]
	}
	return set, bufs
}

// loadUint32 atomically loads an aligned little-endian counter.
func loadUint32(mem []byte, off int) uint32 {
	if off+4 > len(mem) {
		return 0
	}
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&mem[off])))
}

// Mapped is a read-only view of a named shared memory mapping.
type Mapped struct {
	name  string
	mem   []byte
	unmap func([]byte) error
	once  sync.Once
}

func (m *Mapped) Name() string { return m.name }

func (m *Mapped) Size() int { return len(m.mem) }

func (m *Mapped) Version() (begin, end uint32) {
	return loadUint32(m.mem, rf2.VersionBeginOffset), loadUint32(m.mem, rf2.VersionEndOffset)
}

func (m *Mapped) CopyTo(dst []byte) int {
	return copy(dst, m.mem)
}

func (m *Mapped) Bytes() []byte { return m.mem }

// Close unmaps the view. Safe to call more than once.
func (m *Mapped) Close() error {
	var err error
	m.once.Do(func() {
		if m.unmap != nil && m.mem != nil {
			err = m.unmap(m.mem)
		}
	})
	if err != nil {
		return fmt.Errorf("unmap %s: %w", m.name, err)
	}
	return nil
}
