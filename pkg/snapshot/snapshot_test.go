package snapshot

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/fluid"
	"github.com/dd0wney/fluidnet/pkg/network"
)

// populate builds a small placed world: a loaded tank, a producer, and a
// consumer in a row.
func populate(t *testing.T) (*entity.MapStore, *network.Registry) {
	t.Helper()
	store := entity.NewMapStore()
	reg := network.NewRegistry()
	mgr := network.NewManager(store, reg, network.ManagerConfig{TraversalBudget: 4096})

	capacity := 50.0
	parts := []*entity.Participant{
		{
			Position:  entity.Position{X: 0, Y: 0},
			Adjacency: entity.AllSides(),
			Capacity:  &capacity,
			Content:   fluid.Water,
			Amount:    12.5,
		},
		{
			Position:   entity.Position{X: 1, Y: 0},
			Adjacency:  entity.AllSides(),
			Production: &entity.ProductionSpec{Kind: fluid.Water, RatePerSecond: 6},
		},
		{
			Position:  entity.Position{X: 2, Y: 0},
			Adjacency: map[entity.Direction]bool{entity.West: true},
			Consumption: &entity.ConsumptionSpec{
				Kind: fluid.Water, RatePerSecond: 2, Efficiency: 0.8,
			},
		},
	}
	for _, p := range parts {
		h := store.Create(p)
		require.NoError(t, mgr.Place(h))
	}
	return store, reg
}

func TestRoundTrip(t *testing.T) {
	store, reg := populate(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store, reg))

	hdr, records, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, version, hdr.Version)
	assert.NotEqual(t, uuid.Nil, hdr.RunID)
	require.Len(t, records, 3)

	// Frames come out in ascending handle order.
	for i := 1; i < len(records); i++ {
		assert.Less(t, records[i-1].Handle, records[i].Handle)
	}

	rec := records[0]
	assert.Equal(t, "water", rec.Content)
	assert.InDelta(t, 12.5, rec.Amount, 1e-9)
	require.NotNil(t, rec.Capacity)
	assert.InDelta(t, 50, *rec.Capacity, 1e-9)
	assert.NotZero(t, rec.Network, "placed participants carry a network hint")

	p, err := rec.Participant()
	require.NoError(t, err)
	assert.Equal(t, fluid.Water, p.Content)
	assert.InDelta(t, 12.5, p.Amount, 1e-9)
	assert.True(t, p.ConnectsTo(entity.North))

	cons, err := records[2].Participant()
	require.NoError(t, err)
	require.NotNil(t, cons.Consumption)
	assert.Equal(t, fluid.Water, cons.Consumption.Kind)
	assert.InDelta(t, 0.8, cons.Consumption.Efficiency, 1e-9)
	assert.True(t, cons.ConnectsTo(entity.West))
	assert.False(t, cons.ConnectsTo(entity.East))
}

func TestReadRejectsBadMagic(t *testing.T) {
	store, reg := populate(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store, reg))

	raw := buf.Bytes()
	raw[0] = 'X'

	_, _, err := Read(bytes.NewReader(raw))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadMagic))

	var serr *SnapshotError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "read", serr.Op)
	assert.Equal(t, -1, serr.Frame)
}

func TestReadRejectsBadVersion(t *testing.T) {
	store, reg := populate(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store, reg))

	raw := buf.Bytes()
	raw[len(magic)] = 0xFF

	_, _, err := Read(bytes.NewReader(raw))
	assert.True(t, errors.Is(err, ErrBadVersion))
}

func TestReadRejectsCorruptFrame(t *testing.T) {
	store, reg := populate(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store, reg))

	// Flip a byte in the middle of the first frame's payload.
	raw := buf.Bytes()
	headerLen := len(magic) + 2 + 16 + 4
	raw[headerLen+4+2] ^= 0xFF

	_, _, err := Read(bytes.NewReader(raw))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadChecksum))

	var serr *SnapshotError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 0, serr.Frame)
}

func TestReadRejectsTruncation(t *testing.T) {
	store, reg := populate(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store, reg))

	raw := buf.Bytes()
	_, _, err := Read(bytes.NewReader(raw[:len(raw)-3]))
	assert.Error(t, err)
}

func TestRecordRejectsUnknownKind(t *testing.T) {
	rec := Record{Content: "lava"}
	_, err := rec.Participant()
	assert.Error(t, err)
}

func TestEmptyStoreRoundTrip(t *testing.T) {
	store := entity.NewMapStore()
	reg := network.NewRegistry()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store, reg))

	hdr, records, err := Read(&buf)
	require.NoError(t, err)
	assert.Zero(t, hdr.Count)
	assert.Empty(t, records)
}
