package obs

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(hour int) time.Time {
	return time.Date(2023, 5, 1, hour, 0, 0, 0, time.UTC)
}

func TestTableChannels(t *testing.T) {
	tab := Table{
		{PatientID: 1, Time: ts(0), Channel: "NPU02902", Value: 0.4},
		{PatientID: 1, Time: ts(1), Channel: "NPU19748", Value: 120},
		{PatientID: 2, Time: ts(0), Channel: "NPU02902", Value: 1.1},
	}

	got := tab.Channels("NPU02902")
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].PatientID)
	assert.Equal(t, int64(2), got[1].PatientID)

	assert.Empty(t, tab.Channels("NPU03568"))
}

func TestTablePatients(t *testing.T) {
	tab := Table{
		{PatientID: 9, Channel: "a"},
		{PatientID: 3, Channel: "a"},
		{PatientID: 9, Channel: "b"},
	}
	assert.Equal(t, []int64{3, 9}, tab.Patients())
}

func TestTableSorted(t *testing.T) {
	tab := Table{
		{PatientID: 2, Time: ts(0), Channel: "a"},
		{PatientID: 1, Time: ts(5), Channel: "b"},
		{PatientID: 1, Time: ts(1), Channel: "c"},
		{PatientID: 1, Time: ts(1), Channel: "d"}, // same key, input order kept
	}

	got := tab.Sorted()
	require.Len(t, got, 4)
	assert.Equal(t, "c", got[0].Channel)
	assert.Equal(t, "d", got[1].Channel)
	assert.Equal(t, "b", got[2].Channel)
	assert.Equal(t, "a", got[3].Channel)
	assert.Equal(t, "a", tab[0].Channel, "input not mutated")
}

func TestPivot(t *testing.T) {
	tab := Table{
		{PatientID: 1, Time: ts(0), Channel: "NPU01684", Value: 0.3},
		{PatientID: 1, Time: ts(0), Channel: "NPU01370", Value: 55},
		{PatientID: 1, Time: ts(1), Channel: "NPU01684", Value: 0.9},
		{PatientID: 2, Time: ts(0), Channel: "NPU01370", Value: 12},
	}

	rows, excluded, collapsed := tab.Pivot("NPU01684", "NPU01370")
	require.Len(t, rows, 3)
	assert.Zero(t, excluded)
	assert.Zero(t, collapsed)

	assert.Equal(t, map[string]float64{"NPU01684": 0.3, "NPU01370": 55}, rows[0].Values)
	assert.Equal(t, map[string]float64{"NPU01684": 0.9}, rows[1].Values)
	assert.Equal(t, map[string]float64{"NPU01370": 12}, rows[2].Values)
}

func TestPivot_DuplicateFirstWins(t *testing.T) {
	tab := Table{
		{PatientID: 1, Time: ts(0), Channel: "NPU18016", Value: 140},
		{PatientID: 1, Time: ts(0), Channel: "NPU18016", Value: 900},
	}

	rows, _, collapsed := tab.Pivot("NPU18016")
	require.Len(t, rows, 1)
	assert.Equal(t, 1, collapsed)
	assert.Equal(t, 140.0, rows[0].Values["NPU18016"])
}

func TestPivot_MalformedExcluded(t *testing.T) {
	tab := Table{
		{PatientID: 1, Time: ts(0), Channel: "NPU18016", Value: math.NaN()},
		{PatientID: 1, Time: ts(1), Channel: "NPU18016", Value: 150},
	}

	rows, excluded, _ := tab.Pivot("NPU18016")
	require.Len(t, rows, 1)
	assert.Equal(t, 1, excluded)
	assert.Equal(t, ts(1), rows[0].Time)
}

func TestReadCSV(t *testing.T) {
	in := strings.Join([]string{
		"patient_id,time,channel,value,ref",
		"101,2023-05-01 08:00:00,NPU19748,142.5,\"<8,0\"",
		"101,2023-05-02 08:00:00,NPU19748,7,",
		"102,2023-05-01,NPU02902,\"0,4\",",
	}, "\n")

	tab, stats, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, tab, 3)
	assert.Equal(t, 3, stats.Rows)
	assert.Zero(t, stats.Malformed)

	assert.Equal(t, int64(101), tab[0].PatientID)
	assert.Equal(t, 142.5, tab[0].Value)
	require.NotNil(t, tab[0].Ref)
	assert.Equal(t, 8.0, *tab[0].Ref)

	assert.Nil(t, tab[1].Ref)
	assert.Equal(t, 0.4, tab[2].Value)
}

func TestReadCSV_MalformedRows(t *testing.T) {
	in := strings.Join([]string{
		"patient_id,time,channel,value",
		"nope,2023-05-01 08:00:00,NPU19748,10",
		"101,not-a-time,NPU19748,10",
		"101,2023-05-01 08:00:00,NPU19748,abc",
	}, "\n")

	tab, stats, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Malformed)

	// Bad id/time rows are dropped entirely; a bad value keeps the row but
	// loads NaN so rule evaluators exclude it.
	require.Len(t, tab, 1)
	assert.False(t, tab[0].Valid())
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("patient_id,time,channel\n1,2023-05-01,x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value")
}

func TestParseRef(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"<8,0", 8.0, true},
		{"< 10", 10, true},
		{"8.5", 8.5, true},
		{">120", 120, true},
		{"", 0, false},
		{"elevated", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseRef(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.in)
		}
	}
}
