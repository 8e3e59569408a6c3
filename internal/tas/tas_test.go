package tas_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gbcore/gbcore/internal/tas"
)

func TestRecorder_OnlyEmitsRowsOnChange(t *testing.T) {
	r := tas.NewRecorder()
	r.Record(0, []string{"A"})
	r.Record(1, []string{"A"})        // unchanged, no new row
	r.Record(2, []string{"B", "A"})   // order differs but set changed -> new row, sorted
	r.Record(3, []string{"A", "B"})   // same set as above, different order -> no new row
	r.Record(4, nil)                  // release -> new row

	data, err := r.JSON()
	require.NoError(t, err)

	p, err := tas.Load(data)
	require.NoError(t, err)
	require.Equal(t, 5, p.TotalFrames())

	active, err := p.ActiveButtons(0)
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, active)

	active, err = p.ActiveButtons(2)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, active)

	active, err = p.ActiveButtons(4)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestLoad_RejectsUnknownButtonAndNonMonotonicFrames(t *testing.T) {
	_, err := tas.Load([]byte(`{"version":"1.0","frames":1,"inputs":[{"frame":0,"buttons":["Turbo"]}]}`))
	require.Error(t, err)

	_, err = tas.Load([]byte(`{"version":"1.0","frames":2,"inputs":[{"frame":1,"buttons":["A"]},{"frame":0,"buttons":["B"]}]}`))
	require.Error(t, err)

	_, err = tas.Load([]byte(`{"version":"1.0","frames":1,"inputs":[{"frame":0,"buttons":["A","A"]}]}`))
	require.Error(t, err)
}

func TestLoad_RejectsBadVersion(t *testing.T) {
	_, err := tas.Load([]byte(`{"version":"2.0","frames":0,"inputs":[]}`))
	require.Error(t, err)
}
