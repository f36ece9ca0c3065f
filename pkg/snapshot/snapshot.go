// Package snapshot persists and restores the fluid network state: every
// participant's capability record, current fluid, and network-id hint.
//
// Container format: an uncompressed header (magic, version, run id, frame
// count) followed by one frame per participant. Each frame is
// [length:4][snappy-compressed JSON][crc32:4], with the checksum taken over
// the compressed bytes. Network ids in a snapshot are hints only; loading
// always ends in a full topology rebuild.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sort"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/fluid"
	"github.com/dd0wney/fluidnet/pkg/network"
)

const (
	magic   = "FNETSNAP"
	version = uint16(1)

	// maxFrameSize rejects obviously corrupt length prefixes before
	// allocating.
	maxFrameSize = 1 << 20
)

// Common sentinel errors.
var (
	ErrBadMagic    = errors.New("not a fluidnet snapshot")
	ErrBadVersion  = errors.New("unsupported snapshot version")
	ErrBadChecksum = errors.New("frame checksum mismatch")
)

// SnapshotError provides structured error information for snapshot I/O.
type SnapshotError struct {
	Op    string // "write" or "read"
	Frame int    // frame index, -1 for header
	Cause error
}

// Error implements the error interface.
func (e *SnapshotError) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("snapshot %s frame %d: %v", e.Op, e.Frame, e.Cause)
	}
	return fmt.Sprintf("snapshot %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *SnapshotError) Unwrap() error { return e.Cause }

// Header describes a snapshot container.
type Header struct {
	Version uint16
	RunID   uuid.UUID
	Count   int
}

// ProductionRecord is the wire form of a production capability.
type ProductionRecord struct {
	Kind          string  `json:"kind"`
	RatePerSecond float64 `json:"rate_per_second"`
}

// ConsumptionRecord is the wire form of a consumption capability.
type ConsumptionRecord struct {
	Kind          string  `json:"kind"`
	RatePerSecond float64 `json:"rate_per_second"`
	Efficiency    float64 `json:"efficiency"`
}

// Record is the wire form of one participant.
type Record struct {
	Handle      uint64             `json:"handle"`
	X           int                `json:"x"`
	Y           int                `json:"y"`
	Adjacency   []string           `json:"adjacency"`
	Capacity    *float64           `json:"capacity,omitempty"`
	Production  *ProductionRecord  `json:"production,omitempty"`
	Consumption *ConsumptionRecord `json:"consumption,omitempty"`
	Content     string             `json:"content"`
	Amount      float64            `json:"amount"`
	Network     uint64             `json:"network"` // hint only
}

// RecordOf converts a live participant into its wire form.
func RecordOf(h entity.Handle, p *entity.Participant, netID network.ID) Record {
	rec := Record{
		Handle:  uint64(h),
		X:       p.Position.X,
		Y:       p.Position.Y,
		Content: p.Content.String(),
		Amount:  p.Amount,
		Network: uint64(netID),
	}
	for _, d := range entity.Directions() {
		if p.ConnectsTo(d) {
			rec.Adjacency = append(rec.Adjacency, d.String())
		}
	}
	if p.Capacity != nil {
		v := *p.Capacity
		rec.Capacity = &v
	}
	if p.Production != nil {
		rec.Production = &ProductionRecord{
			Kind:          p.Production.Kind.String(),
			RatePerSecond: p.Production.RatePerSecond,
		}
	}
	if p.Consumption != nil {
		rec.Consumption = &ConsumptionRecord{
			Kind:          p.Consumption.Kind.String(),
			RatePerSecond: p.Consumption.RatePerSecond,
			Efficiency:    p.Consumption.Efficiency,
		}
	}
	return rec
}

// Participant converts a wire record back into a live capability record.
func (r Record) Participant() (*entity.Participant, error) {
	content, err := fluid.ParseKind(r.Content)
	if err != nil {
		return nil, err
	}
	p := &entity.Participant{
		Position:  entity.Position{X: r.X, Y: r.Y},
		Adjacency: make(map[entity.Direction]bool, len(r.Adjacency)),
		Content:   content,
		Amount:    r.Amount,
	}
	for _, name := range r.Adjacency {
		d, ok := entity.ParseDirection(name)
		if !ok {
			return nil, fmt.Errorf("unknown direction %q", name)
		}
		p.Adjacency[d] = true
	}
	if r.Capacity != nil {
		v := *r.Capacity
		p.Capacity = &v
	}
	if r.Production != nil {
		kind, err := fluid.ParseKind(r.Production.Kind)
		if err != nil {
			return nil, err
		}
		p.Production = &entity.ProductionSpec{
			Kind:          kind,
			RatePerSecond: r.Production.RatePerSecond,
		}
	}
	if r.Consumption != nil {
		kind, err := fluid.ParseKind(r.Consumption.Kind)
		if err != nil {
			return nil, err
		}
		p.Consumption = &entity.ConsumptionSpec{
			Kind:          kind,
			RatePerSecond: r.Consumption.RatePerSecond,
			Efficiency:    r.Consumption.Efficiency,
		}
	}
	p.ClampAmount()
	return p, nil
}

// Write serializes every participant in the store to w.
func Write(w io.Writer, store entity.Store, reg *network.Registry) error {
	bw := bufio.NewWriter(w)

	var handles []entity.Handle
	store.ForEach(func(h entity.Handle, _ *entity.Participant) bool {
		handles = append(handles, h)
		return true
	})
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	if _, err := bw.WriteString(magic); err != nil {
		return &SnapshotError{Op: "write", Frame: -1, Cause: err}
	}
	hdr := make([]byte, 2+16+4)
	binary.LittleEndian.PutUint16(hdr[0:2], version)
	runID := uuid.New()
	copy(hdr[2:18], runID[:])
	binary.LittleEndian.PutUint32(hdr[18:22], uint32(len(handles)))
	if _, err := bw.Write(hdr); err != nil {
		return &SnapshotError{Op: "write", Frame: -1, Cause: err}
	}

	for i, h := range handles {
		p, ok := store.Get(h)
		if !ok {
			continue
		}
		id, _ := reg.Lookup(h)
		data, err := json.Marshal(RecordOf(h, p, id))
		if err != nil {
			return &SnapshotError{Op: "write", Frame: i, Cause: err}
		}
		compressed := snappy.Encode(nil, data)

		var frame [4]byte
		binary.LittleEndian.PutUint32(frame[:], uint32(len(compressed)))
		if _, err := bw.Write(frame[:]); err != nil {
			return &SnapshotError{Op: "write", Frame: i, Cause: err}
		}
		if _, err := bw.Write(compressed); err != nil {
			return &SnapshotError{Op: "write", Frame: i, Cause: err}
		}
		var sum [4]byte
		binary.LittleEndian.PutUint32(sum[:], crc32.ChecksumIEEE(compressed))
		if _, err := bw.Write(sum[:]); err != nil {
			return &SnapshotError{Op: "write", Frame: i, Cause: err}
		}
	}
	if err := bw.Flush(); err != nil {
		return &SnapshotError{Op: "write", Frame: -1, Cause: err}
	}
	return nil
}

// Read parses a snapshot container. A corrupt frame aborts the load; a
// partially applied snapshot is worse than a failed one.
func Read(r io.Reader) (Header, []Record, error) {
	br := bufio.NewReader(r)
	var hdr Header

	head := make([]byte, len(magic)+2+16+4)
	if _, err := io.ReadFull(br, head); err != nil {
		return hdr, nil, &SnapshotError{Op: "read", Frame: -1, Cause: err}
	}
	if string(head[:len(magic)]) != magic {
		return hdr, nil, &SnapshotError{Op: "read", Frame: -1, Cause: ErrBadMagic}
	}
	hdr.Version = binary.LittleEndian.Uint16(head[8:10])
	if hdr.Version != version {
		return hdr, nil, &SnapshotError{Op: "read", Frame: -1, Cause: ErrBadVersion}
	}
	copy(hdr.RunID[:], head[10:26])
	hdr.Count = int(binary.LittleEndian.Uint32(head[26:30]))

	records := make([]Record, 0, hdr.Count)
	for i := 0; i < hdr.Count; i++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			return hdr, nil, &SnapshotError{Op: "read", Frame: i, Cause: err}
		}
		frameLen := binary.LittleEndian.Uint32(lenBuf[:])
		if frameLen == 0 || frameLen > maxFrameSize {
			return hdr, nil, &SnapshotError{Op: "read", Frame: i,
				Cause: fmt.Errorf("implausible frame length %d", frameLen)}
		}
		compressed := make([]byte, frameLen)
		if _, err := io.ReadFull(br, compressed); err != nil {
			return hdr, nil, &SnapshotError{Op: "read", Frame: i, Cause: err}
		}
		var sumBuf [4]byte
		if _, err := io.ReadFull(br, sumBuf[:]); err != nil {
			return hdr, nil, &SnapshotError{Op: "read", Frame: i, Cause: err}
		}
		if crc32.ChecksumIEEE(compressed) != binary.LittleEndian.Uint32(sumBuf[:]) {
			return hdr, nil, &SnapshotError{Op: "read", Frame: i, Cause: ErrBadChecksum}
		}

		data, err := snappy.Decode(nil, compressed)
		if err != nil {
			return hdr, nil, &SnapshotError{Op: "read", Frame: i, Cause: err}
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return hdr, nil, &SnapshotError{Op: "read", Frame: i, Cause: err}
		}
		records = append(records, rec)
	}
	return hdr, records, nil
}
