package report_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/report"
)

func sampleSummary() ingest.RunSummary {
	oldest := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return ingest.RunSummary{
		RunID:     "run-42",
		Kind:      "candles",
		StartedAt: oldest,
		Units: []ingest.UnitSummary{{
			Key: "EURUSD_1h",
			Files: []ingest.FileSummary{{
				Path:        "EURUSD_1h.csv",
				ParseReport: ingest.ParseReport{Lines: 3, Valid: 2, Rejected: 1, Errors: []string{"line 3: bad"}},
			}},
			Stats: ingest.Stats{Seen: 2, Inserted: 2, Rejected: 1, Oldest: &oldest},
		}},
		Totals: ingest.Stats{Seen: 2, Inserted: 2, Rejected: 1},
	}
}

// go test -v --run TestWriteJSON
func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	if err := report.Write(path, report.FormatJSON, sampleSummary()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var got ingest.RunSummary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got.RunID != "run-42" || len(got.Units) != 1 || got.Units[0].Files[0].Valid != 2 {
		t.Errorf("unexpected report: %+v", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

// go test -v --run TestWriteYAML
func TestWriteYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := report.Write(path, report.FormatYAML, sampleSummary()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if doc["run_id"] != "run-42" {
		t.Errorf("unexpected run_id: %v", doc["run_id"])
	}
	units := doc["units"].([]any)
	file := units[0].(map[string]any)["files"].([]any)[0].(map[string]any)
	if file["valid"] != 2 {
		t.Errorf("parse report not inlined: %v", file)
	}
}

// go test -v --run TestEncodeUnknownFormat
func TestEncodeUnknownFormat(t *testing.T) {
	if _, err := report.Encode(sampleSummary(), "xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}
