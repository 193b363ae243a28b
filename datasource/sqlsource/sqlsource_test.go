package sqlsource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fantom-foundation/rangeview/inter/source"
)

func testSource(t *testing.T, n int) *Source {
	require := require.New(t)
	s, err := Open(":memory:", "rows")
	require.NoError(err)
	t.Cleanup(func() {
		require.NoError(s.Close())
	})
	require.NoError(s.Init(context.Background()))

	items := make([]source.Item, n)
	for i := range items {
		items[i] = map[string]interface{}{"n": int64(i), "name": "row"}
	}
	require.NoError(s.Append(context.Background(), items...))
	return s
}

func TestMetadata(t *testing.T) {
	require := require.New(t)
	s := testSource(t, 25)

	meta, err := s.Metadata(context.Background())
	require.NoError(err)
	require.Equal(25, meta.TotalCount)
	require.False(meta.SupportsStreaming)
	require.Equal("sqlite::memory:/rows", s.ID())
}

func TestLoadRange(t *testing.T) {
	require := require.New(t)
	s := testSource(t, 25)

	items, err := s.LoadRange(context.Background(), 10, 13)
	require.NoError(err)
	require.Len(items, 3)
	for i, item := range items {
		require.Equal(int64(10+i), item.(map[string]interface{})["n"])
	}

	// the tail is shorter
	items, err = s.LoadRange(context.Background(), 20, 40)
	require.NoError(err)
	require.Len(items, 5)

	_, err = s.LoadRange(context.Background(), 5, 1)
	require.Error(err)
}

func TestInvalidTable(t *testing.T) {
	_, err := New(nil, ":memory:", "rows; DROP TABLE x")
	require.Error(t, err)
}
