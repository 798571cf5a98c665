package acquire

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/workshopdl/internal/testutil"
	"github.com/roach88/workshopdl/internal/workshop"
)

func TestSelectItem(t *testing.T) {
	tests := []struct {
		name    string
		entries []*workshop.ItemDescriptor
		want    workshop.ItemDescriptor
	}{
		{
			name:    "single entry",
			entries: []*workshop.ItemDescriptor{{ID: 1, Title: "A", OwnerAppID: 4000}},
			want:    workshop.ItemDescriptor{ID: 1, Title: "A", OwnerAppID: 4000},
		},
		{
			name:    "skips tombstones",
			entries: []*workshop.ItemDescriptor{nil, {ID: 2, Title: "B"}},
			want:    workshop.ItemDescriptor{ID: 2, Title: "B"},
		},
		{
			name:    "skips empty titles",
			entries: []*workshop.ItemDescriptor{{ID: 1}, {ID: 2, Title: "B"}, {ID: 3, Title: "C"}},
			want:    workshop.ItemDescriptor{ID: 2, Title: "B"},
		},
		{
			name:    "normalizes title",
			entries: []*workshop.ItemDescriptor{{ID: 1, Title: "Cafe\u0301"}},
			want:    workshop.ItemDescriptor{ID: 1, Title: "Caf\u00e9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectItem(1, tt.entries)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectItem_NoQualifyingEntry(t *testing.T) {
	for name, entries := range map[string][]*workshop.ItemDescriptor{
		"empty":        nil,
		"all absent":   {nil, nil},
		"all untitled": {{ID: 1}, nil, {ID: 2}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := SelectItem(1, entries)
			require.Error(t, err)
			assert.True(t, IsCode(err, ErrCodeQuery))
		})
	}
}

func TestResolver_PumpsUntilDelivered(t *testing.T) {
	s := testutil.NewFakeSession(4000)
	s.Entries = []*workshop.ItemDescriptor{{ID: 7, Title: "Map", OwnerAppID: 4000}}
	s.QueryDelay = 3
	sleeper := testutil.NewInstantSleeper()

	r := NewResolver(s, testutil.DefaultTestTick, sleeper, discardLogger())
	item, err := r.Resolve(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, "Map", item.Title)
	assert.Equal(t, 4, s.Pumps)
	assert.Equal(t, 3, sleeper.Count())
	assert.Equal(t, "query_item id=7 metadata=true", s.Trace[0])
}

func TestResolver_QueryError(t *testing.T) {
	s := testutil.NewFakeSession(4000)
	s.QueryErr = errors.New("busy")

	r := NewResolver(s, testutil.DefaultTestTick, testutil.NewInstantSleeper(), discardLogger())
	_, err := r.Resolve(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeQuery))
	assert.ErrorContains(t, err, "busy")
}

func TestResolver_Interrupted(t *testing.T) {
	s := testutil.NewFakeSession(4000)
	s.QueryDelay = 1000

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := testutil.NewInstantSleeper()
	sleeper.OnSleep = func(n int) {
		if n == 5 {
			cancel()
		}
	}

	r := NewResolver(s, testutil.DefaultTestTick, sleeper, discardLogger())
	_, err := r.Resolve(ctx, 7)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInterrupted))
	assert.Equal(t, 5, s.Pumps)
}
