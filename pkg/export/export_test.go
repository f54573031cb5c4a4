package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/core/planner"
)

func sample() planner.SearchResult {
	at := func(h int) time.Time { return time.Date(2025, 3, 3, h, 0, 0, 0, time.UTC) }
	return planner.SearchResult{
		WorkItemID: "li:p1:li1",
		Duration:   model.AdjustedDuration{FinalAdjustedHours: 2, Unadjusted: true},
		Workers: []planner.WorkerSlots{
			{WorkerID: "ann@x", Candidates: []model.Candidate{
				{WorkerID: "ann@x", Start: at(8), End: at(10), TotalHoursRequired: 2},
				{WorkerID: "ann@x", Start: at(12), End: at(14), TotalHoursRequired: 2},
			}},
			{WorkerID: "bob@x", ConflictDataIncomplete: true, Candidates: []model.Candidate{
				{WorkerID: "bob@x", Start: at(8), End: at(10), TotalHoursRequired: 2},
			}},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "csv", sample()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "worker_id", rows[0][1])
	assert.Equal(t, []string{"li:p1:li1", "ann@x", "2025-03-03T12:00:00Z", "2025-03-03T14:00:00Z", "2", "true", "false"}, rows[2])
	assert.Equal(t, "true", rows[3][6])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", sample()))
	var out planner.SearchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 3, out.Total())
	assert.True(t, out.Workers[1].ConflictDataIncomplete)
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "xml", sample()))
}
