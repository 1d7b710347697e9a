package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour int) time.Time {
	return time.Date(1970, 1, 1, hour, 0, 0, 0, time.UTC)
}

func signal(patient int64, flags []bool, hours []int) []Point {
	pts := make([]Point, len(flags))
	for i := range flags {
		pts[i] = Point{PatientID: patient, Time: at(hours[i]), Flag: flags[i]}
	}
	return pts
}

func TestComputeIDs(t *testing.T) {
	pts := append(
		signal(0, []bool{false, false, true, true, true}, []int{0, 1, 2, 3, 4}),
		signal(1, []bool{true, true, false, true, true}, []int{0, 1, 2, 3, 4})...,
	)

	ids := ComputeIDs(pts)
	assert.Equal(t, []int{1, 1, 2, 2, 2, 1, 1, 2, 3, 3}, ids)
}

func TestComputeIDs_RestartPerPatient(t *testing.T) {
	// Patient boundaries always open a new streak, even when the flag value
	// carries over from the previous patient's last row.
	pts := append(
		signal(3, []bool{true, true}, []int{0, 1}),
		signal(7, []bool{true}, []int{0})...,
	)

	ids := ComputeIDs(pts)
	assert.Equal(t, []int{1, 1, 1}, ids)
}

func TestComputeIDs_UnsortedInput(t *testing.T) {
	// Engine sorts internally; ids still map back to input positions.
	pts := []Point{
		{PatientID: 0, Time: at(4), Flag: true},
		{PatientID: 0, Time: at(0), Flag: false},
		{PatientID: 0, Time: at(2), Flag: true},
		{PatientID: 0, Time: at(1), Flag: false},
		{PatientID: 0, Time: at(3), Flag: true},
	}

	ids := ComputeIDs(pts)
	assert.Equal(t, []int{2, 1, 2, 1, 2}, ids)
}

func TestStreaks(t *testing.T) {
	pts := append(
		signal(0, []bool{false, false, true, true, true}, []int{0, 1, 2, 3, 4}),
		signal(1, []bool{true, true, false, true, true}, []int{0, 1, 2, 3, 4})...,
	)

	got := Streaks(pts)
	require.Len(t, got, 5)

	assert.Equal(t, Streak{PatientID: 0, Ordinal: 1, Flag: false, Start: at(0), End: at(1), DurationHours: 1}, got[0])
	assert.Equal(t, Streak{PatientID: 0, Ordinal: 2, Flag: true, Start: at(2), End: at(4), DurationHours: 2}, got[1])
	assert.Equal(t, Streak{PatientID: 1, Ordinal: 1, Flag: true, Start: at(0), End: at(1), DurationHours: 1}, got[2])
	assert.Equal(t, Streak{PatientID: 1, Ordinal: 2, Flag: false, Start: at(2), End: at(2), DurationHours: 0}, got[3])
	assert.Equal(t, Streak{PatientID: 1, Ordinal: 3, Flag: true, Start: at(3), End: at(4), DurationHours: 1}, got[4])
}

func TestLongerThan_ReferenceFixture(t *testing.T) {
	// Patient 0: a 4-row positive streak spanning hours 0-3 (3h) then a
	// single negative row. Patient 1: sparse sampling, so two rows 4h apart
	// already form a qualifying streak.
	pts := []Point{
		{PatientID: 0, Time: at(0), Flag: true},
		{PatientID: 0, Time: at(1), Flag: true},
		{PatientID: 0, Time: at(2), Flag: true},
		{PatientID: 0, Time: at(3), Flag: true},
		{PatientID: 0, Time: at(4), Flag: false},
		{PatientID: 1, Time: at(0), Flag: true},
		{PatientID: 1, Time: at(4), Flag: true},
		{PatientID: 1, Time: at(8), Flag: false},
		{PatientID: 1, Time: at(9), Flag: true},
		{PatientID: 1, Time: at(13), Flag: true},
	}

	got := LongerThan(pts, 2)
	assert.Equal(t, []bool{true, true, true, true, false, true, true, false, true, true}, got)
}

func TestLongerThan_NegativeStreaksNeverQualify(t *testing.T) {
	// A week-long negative run stays false; duration only promotes positive runs.
	pts := signal(0, []bool{false, false}, []int{0, 168})

	got := LongerThan(pts, 2)
	assert.Equal(t, []bool{false, false}, got)
}

func TestLongerThan_ExactDurationExcluded(t *testing.T) {
	// Hourly positive readings at hours 2..4 span exactly 2h: not strictly
	// longer than 2, but longer than 1.
	pts := signal(0, []bool{false, false, true, true, true}, []int{0, 1, 2, 3, 4})

	assert.Equal(t, []bool{false, false, false, false, false}, LongerThan(pts, 2))
	assert.Equal(t, []bool{false, false, true, true, true}, LongerThan(pts, 1))
}

func TestLongerThan_SingleReadingNeverQualifies(t *testing.T) {
	pts := []Point{{PatientID: 5, Time: at(0), Flag: true}}

	assert.Equal(t, []bool{false}, LongerThan(pts, 0))
}

func TestLongerThan_Empty(t *testing.T) {
	assert.Empty(t, LongerThan(nil, 10))
	assert.Empty(t, ComputeIDs(nil))
}

func TestComputeIDs_DistinctIDsEqualFlagChangesPlusOne(t *testing.T) {
	flags := []bool{true, false, false, true, true, true, false, true}
	hours := []int{0, 1, 2, 3, 4, 5, 6, 7}
	pts := signal(2, flags, hours)

	ids := ComputeIDs(pts)

	changes := 0
	for i := 1; i < len(flags); i++ {
		if flags[i] != flags[i-1] {
			changes++
		}
	}
	distinct := map[int]bool{}
	prev := 0
	for _, id := range ids {
		distinct[id] = true
		require.GreaterOrEqual(t, id, prev, "ids must be non-decreasing in time")
		prev = id
	}
	assert.Len(t, distinct, changes+1)
}
