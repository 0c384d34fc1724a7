package ingest_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		path := filepath.Join(root, r)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func hasWarning(warnings []string, substr string) bool {
	return slices.ContainsFunc(warnings, func(w string) bool { return strings.Contains(w, substr) })
}

// go test -v --run TestParseDatasetFilename
func TestParseDatasetFilename(t *testing.T) {
	for _, name := range []string{"EURUSD_1h.csv", "eurusd_1H.csv", "EurUsd_1h.CSV"} {
		key, err := ingest.ParseDatasetFilename(name, ".csv")
		if err != nil {
			t.Errorf("ParseDatasetFilename(%q) failed: %v", name, err)
			continue
		}
		if key.Pair != "EURUSD" || key.Timeframe != market.Timeframe1Hour {
			t.Errorf("ParseDatasetFilename(%q) = %+v", name, key)
		}
	}

	for _, name := range []string{"EURUSD1h.csv", "EURUSD_1h_2024.csv", "XAUUSD_1h.csv", "EURUSD_2h.csv"} {
		if _, err := ingest.ParseDatasetFilename(name, ".csv"); err == nil {
			t.Errorf("ParseDatasetFilename(%q) should fail", name)
		}
	}
}

// go test -v --run TestLocateFlat
func TestLocateFlat(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"EURUSD_1h.csv",
		"gbpusd_4H.csv",
		"EURUSD1h.csv",
		"XAUUSD_1h.csv",
		"notes.txt",
		".EURUSD_1d.csv",
		"EURUSD/h1/ignored.csv",
	)

	d, err := ingest.Locate(root, ingest.LocateOptions{Layout: ingest.LayoutFlat})
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if len(d.Files) != 2 {
		t.Fatalf("expected 2 files, got %+v", d.Files)
	}
	if len(d.Warnings) != 2 || !hasWarning(d.Warnings, "EURUSD1h.csv") || !hasWarning(d.Warnings, "XAUUSD_1h.csv") {
		t.Errorf("unexpected warnings: %v", d.Warnings)
	}

	units := ingest.GroupUnits(d.Files)
	if len(units) != 2 || units[0].Key.String() != "EURUSD_1h" || units[1].Key.String() != "GBPUSD_4h" {
		t.Errorf("unexpected units: %+v", units)
	}
}

// go test -v --run TestLocateNested
func TestLocateNested(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"EURUSD/h1/EURUSD_2024.csv",
		"EURUSD/h1/EURUSD_2023.csv",
		"EURUSD/h1/readme.md",
		"EURUSD/mn1/EURUSD.csv",
		"eurusd/D1/all.csv",
		"XYZ/h1/x.csv",
		"GBPUSD/m5/a.csv",
		"EURUSD_1h.csv",
	)

	d, err := ingest.Locate(root, ingest.LocateOptions{Layout: ingest.LayoutNested, Extension: "csv"})
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if !hasWarning(d.Warnings, "mn1") || !hasWarning(d.Warnings, "XYZ") {
		t.Errorf("expected warnings for mn1 and XYZ, got %v", d.Warnings)
	}

	units := ingest.GroupUnits(d.Files)
	var keys []string
	for _, u := range units {
		keys = append(keys, u.Key.String())
	}
	want := []string{"EURUSD_1h", "EURUSD_1d", "GBPUSD_5m"}
	if !slices.Equal(keys, want) {
		t.Fatalf("units = %v, want %v", keys, want)
	}

	files := units[0].Files
	if len(files) != 2 || filepath.Base(files[0]) != "EURUSD_2023.csv" || filepath.Base(files[1]) != "EURUSD_2024.csv" {
		t.Errorf("expected both yearly files in name order, got %v", files)
	}
}

// go test -v --run TestLocateAuto
func TestLocateAuto(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"EURUSD_1h.csv",
		"EURUSD/h1/EURUSD_2024.csv",
	)

	d, err := ingest.Locate(root, ingest.LocateOptions{})
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	units := ingest.GroupUnits(d.Files)
	if len(units) != 1 || len(units[0].Files) != 2 {
		t.Errorf("flat and nested files for the same key should share a unit: %+v", units)
	}
}

// go test -v --run TestLocateMissingRoot
func TestLocateMissingRoot(t *testing.T) {
	if _, err := ingest.Locate(filepath.Join(t.TempDir(), "absent"), ingest.LocateOptions{}); err == nil {
		t.Error("expected error for missing root")
	}
	if _, err := ingest.ParseLayout("tree"); err == nil {
		t.Error("expected error for unknown layout")
	}
}

// go test -v --run TestGroupUnitsIsPure
func TestGroupUnitsIsPure(t *testing.T) {
	files := []ingest.DiscoveredFile{
		{Key: ingest.DatasetKey{Pair: "GBPUSD", Timeframe: "1w"}, Path: "/b/w.csv"},
		{Key: ingest.DatasetKey{Pair: "EURUSD", Timeframe: "1d"}, Path: "/a/2.csv"},
		{Key: ingest.DatasetKey{Pair: "EURUSD", Timeframe: "5m"}, Path: "/a/m.csv"},
		{Key: ingest.DatasetKey{Pair: "EURUSD", Timeframe: "1d"}, Path: "/a/1.csv"},
	}
	before := slices.Clone(files)

	first := ingest.GroupUnits(files)
	second := ingest.GroupUnits(files)

	if !slices.Equal(files, before) {
		t.Error("GroupUnits must not modify its input")
	}
	if len(first) != 3 || first[0].Key.Timeframe != "5m" || first[1].Key.Timeframe != "1d" || first[2].Key.Pair != "GBPUSD" {
		t.Errorf("unexpected order: %+v", first)
	}
	if !slices.Equal(first[1].Files, []string{"/a/1.csv", "/a/2.csv"}) {
		t.Errorf("unexpected files: %v", first[1].Files)
	}
	if len(second) != len(first) || !slices.Equal(second[1].Files, first[1].Files) {
		t.Error("GroupUnits must be deterministic")
	}
}
