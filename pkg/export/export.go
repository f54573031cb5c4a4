// Package export writes slot search results for spreadsheets and scripts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/crewplan/core/planner"
)

// WriteJSON writes the search result to w in JSON format.
func WriteJSON(w io.Writer, res planner.SearchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteCSV writes one row per candidate, workers in request order.
func WriteCSV(w io.Writer, res planner.SearchResult) error {
	cw := csv.NewWriter(w)
	header := []string{"work_item_id", "worker_id", "start", "end", "hours", "unadjusted", "conflict_data_incomplete"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, ws := range res.Workers {
		for _, c := range ws.Candidates {
			rec := []string{
				res.WorkItemID,
				ws.WorkerID,
				c.Start.Format(time.RFC3339),
				c.End.Format(time.RFC3339),
				strconv.FormatFloat(c.TotalHoursRequired, 'f', -1, 64),
				strconv.FormatBool(res.Duration.Unadjusted),
				strconv.FormatBool(ws.ConflictDataIncomplete),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format, "json" or "csv".
func Write(w io.Writer, format string, res planner.SearchResult) error {
	switch format {
	case "json", "":
		return WriteJSON(w, res)
	case "csv":
		return WriteCSV(w, res)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
