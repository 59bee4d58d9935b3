package region

import (
	"encoding/binary"
	"sync"

	"github.com/simlink/relay/pkg/rf2"
)

// Buffer is a record held in process memory and overwritten as a whole
// block, either by relayed frames or by tests standing in for the producer.
type Buffer struct {
	mu   sync.RWMutex
	name string
	data []byte
}

// NewBuffer allocates a zeroed buffer sized for the record type.
func NewBuffer(t rf2.RecordType) *Buffer {
	return &Buffer{
		name: "buffer:" + t.String(),
		data: make([]byte, rf2.Size(t)),
	}
}

func (b *Buffer) Name() string { return b.name }

func (b *Buffer) Size() int { return len(b.data) }

func (b *Buffer) Version() (begin, end uint32) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.data) < rf2.VersionEndOffset+4 {
		return 0, 0
	}
	return binary.LittleEndian.Uint32(b.data[rf2.VersionBeginOffset:]), binary.LittleEndian.Uint32(b.data[rf2.VersionEndOffset:])
}

func (b *Buffer) CopyTo(dst []byte) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copy(dst, b.data)
}

// Bytes returns a private copy; a buffer never hands out its backing array
// because Write replaces its contents in place.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Write overwrites the whole record. Short input zero fills the tail and
// long input is truncated to the record size.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := copy(b.data, p)
	clear(b.data[n:])
	return n, nil
}

func (b *Buffer) Close() error { return nil }
