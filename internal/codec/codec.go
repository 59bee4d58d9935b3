// Package codec turns the four raw records into one relay batch and back.
//
// A batch is a concatenation of segments, one per record type in
// rf2.RecordTypes order:
//
//	type u8 | length u32 big endian | zlib payload[length]
package codec

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/simlink/relay/internal/region"
	"github.com/simlink/relay/pkg/rf2"
)

// HeaderSize is the segment header length.
const HeaderSize = 5

var (
	ErrTruncatedHeader = errors.New("truncated segment header")
	ErrLengthOverrun   = errors.New("segment length exceeds message")
	ErrDecompress      = errors.New("segment decompression failed")
	ErrOversize        = errors.New("segment inflates past record size")
)

// MaxBatchSize bounds an encoded batch carrying every record type once,
// with each record at its worst case zlib expansion.
func MaxBatchSize() int64 {
	var n int64
	for _, rt := range rf2.RecordTypes {
		size := int64(rf2.Size(rt))
		n += HeaderSize + size + size>>12 + size>>14 + size>>25 + 13
	}
	return n
}

// Frame is one decoded segment.
type Frame struct {
	Type    uint8
	Payload []byte
}

// Result summarizes one Decode call.
type Result struct {
	Applied int
	// Skipped counts segments that were not applied.
	Skipped int
}

// EncodeBatch compresses the four records into one batch.
func EncodeBatch(bufs [4][]byte) ([]byte, error) {
	var out bytes.Buffer
	for _, rt := range rf2.RecordTypes {
		if err := AppendFrame(&out, Frame{Type: uint8(rt), Payload: bufs[rt]}); err != nil {
			return nil, fmt.Errorf("encode %s: %w", rt, err)
		}
	}
	return out.Bytes(), nil
}

// AppendFrame compresses f.Payload and writes one segment to out.
func AppendFrame(out *bytes.Buffer, f Frame) error {
	var z bytes.Buffer
	w := zlib.NewWriter(&z)
	if _, err := w.Write(f.Payload); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	var hdr [HeaderSize]byte
	hdr[0] = f.Type
	binary.BigEndian.PutUint32(hdr[1:], uint32(z.Len()))
	out.Write(hdr[:])
	out.Write(z.Bytes())
	return nil
}

// Split walks a batch and returns its segments still compressed. It stops
// at the first truncated header or length overrun and returns the segments
// read so far with the error.
func Split(data []byte) ([]Frame, error) {
	var frames []Frame
	for off := 0; off < len(data); {
		if len(data)-off < HeaderSize {
			return frames, fmt.Errorf("%w: %d bytes at offset %d", ErrTruncatedHeader, len(data)-off, off)
		}
		typ := data[off]
		n := int(binary.BigEndian.Uint32(data[off+1:]))
		off += HeaderSize
		if n > len(data)-off {
			return frames, fmt.Errorf("%w: %d declared, %d remaining", ErrLengthOverrun, n, len(data)-off)
		}
		frames = append(frames, Frame{Type: typ, Payload: data[off : off+n]})
		off += n
	}
	return frames, nil
}

// Decompress inflates one segment payload, reading at most limit bytes of
// output. A payload that inflates past limit returns ErrOversize.
func Decompress(payload []byte, limit int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrOversize, limit)
	}
	return out, nil
}

// Decode applies every well-formed segment of data in order. Segments with
// an unknown type or a payload that does not inflate cleanly within its
// record size are skipped. A truncated header or
// a length overrun abandons the rest of the message; segments before it
// have already been applied.
func Decode(data []byte, apply func(rf2.RecordType, []byte)) (Result, error) {
	var res Result
	ctx := context.Background()
	frames, splitErr := Split(data)
	for _, f := range frames {
		rt := rf2.RecordType(f.Type)
		if !rt.Valid() {
			res.Skipped++
			framesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "unknown_type")))
			continue
		}
		raw, err := Decompress(f.Payload, rf2.Size(rt))
		if err != nil {
			reason := "decompress"
			if errors.Is(err, ErrOversize) {
				reason = "oversize"
			}
			res.Skipped++
			framesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
			continue
		}
		apply(rt, raw)
		res.Applied++
		framesDecoded.Add(ctx, 1, metric.WithAttributes(attribute.String("record", rt.String())))
	}
	return res, splitErr
}

// ApplyTo returns an apply func that overwrites the matching buffer.
func ApplyTo(bufs [4]*region.Buffer) func(rf2.RecordType, []byte) {
	return func(rt rf2.RecordType, b []byte) {
		if buf := bufs[rt]; buf != nil {
			_, _ = buf.Write(b)
		}
	}
}
