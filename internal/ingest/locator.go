package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Daniil-33/trading-journal-back/pkg/market"
)

// Layout selects the directory convention the locator recognizes
type Layout string

const (
	// LayoutFlat expects {PAIR}_{TIMEFRAME}.<ext> files directly under root
	LayoutFlat Layout = "flat"
	// LayoutNested expects root/{PAIR}/{timeframe-folder}/*.<ext>
	LayoutNested Layout = "nested"
	// LayoutAuto accepts both conventions in the same root
	LayoutAuto Layout = "auto"
)

// ParseLayout parses a layout name. An empty name means LayoutAuto.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LayoutAuto, nil
	case LayoutFlat, LayoutNested, LayoutAuto:
		return l, nil
	}
	return "", fmt.Errorf("invalid layout: %s", s)
}

// DatasetKey identifies an import unit
type DatasetKey struct {
	Pair      market.Pair      `json:"pair" yaml:"pair"`
	Timeframe market.Timeframe `json:"timeframe" yaml:"timeframe"`
}

func (k DatasetKey) String() string {
	return fmt.Sprintf("%s_%s", k.Pair, k.Timeframe)
}

// CompareKeys orders keys by pair, then by timeframe duration
func CompareKeys(a, b DatasetKey) int {
	if c := strings.Compare(string(a.Pair), string(b.Pair)); c != 0 {
		return c
	}
	return market.CompareTimeframes(a.Timeframe, b.Timeframe)
}

// DiscoveredFile is a source file resolved to its dataset
type DiscoveredFile struct {
	Key  DatasetKey
	Path string
}

// ImportUnit is every file of one dataset, processed together
type ImportUnit struct {
	Key   DatasetKey
	Files []string
}

// LocateOptions configures a directory scan
type LocateOptions struct {
	Layout    Layout
	Extension string // with or without the leading dot, default ".csv"
}

// Discovery is the outcome of a scan. Warnings name every entry that was skipped.
type Discovery struct {
	Files    []DiscoveredFile
	Warnings []string
}

// Locate scans root for candle files. Only an unreadable root is an error;
// unrecognized entries below it become warnings.
func Locate(root string, opts LocateOptions) (Discovery, error) {
	layout := opts.Layout
	if layout == "" {
		layout = LayoutAuto
	}
	ext := normalizeExtension(opts.Extension)

	entries, err := os.ReadDir(root)
	if err != nil {
		return Discovery{}, fmt.Errorf("read dataset root %s: %w", root, err)
	}

	var d Discovery
	for _, e := range entries {
		if isHidden(e.Name()) {
			continue
		}
		path := filepath.Join(root, e.Name())
		switch {
		case e.IsDir() && layout != LayoutFlat:
			d.scanPairDir(path, e.Name(), ext)
		case !e.IsDir() && layout != LayoutNested:
			if !hasExtension(e.Name(), ext) {
				continue
			}
			key, err := ParseDatasetFilename(e.Name(), ext)
			if err != nil {
				d.warnf("skipping %s: %v", path, err)
				continue
			}
			d.Files = append(d.Files, DiscoveredFile{Key: key, Path: path})
		}
	}
	return d, nil
}

func (d *Discovery) scanPairDir(dir, name, ext string) {
	pair, err := market.ParsePair(name)
	if err != nil {
		d.warnf("skipping directory %s: %v", dir, err)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		d.warnf("skipping directory %s: %v", dir, err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() || isHidden(e.Name()) {
			continue
		}
		tfDir := filepath.Join(dir, e.Name())
		tf, err := market.TimeframeFromFolder(e.Name())
		if err != nil {
			d.warnf("skipping directory %s: %v", tfDir, err)
			continue
		}

		files, err := os.ReadDir(tfDir)
		if err != nil {
			d.warnf("skipping directory %s: %v", tfDir, err)
			continue
		}
		for _, f := range files {
			if f.IsDir() || isHidden(f.Name()) || !hasExtension(f.Name(), ext) {
				continue
			}
			d.Files = append(d.Files, DiscoveredFile{
				Key:  DatasetKey{Pair: pair, Timeframe: tf},
				Path: filepath.Join(tfDir, f.Name()),
			})
		}
	}
}

func (d *Discovery) warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// ParseDatasetFilename resolves a flat-layout name such as "eurusd_1H.csv".
// The stem must be exactly two "_" separated parts naming a known pair and timeframe.
func ParseDatasetFilename(name, ext string) (DatasetKey, error) {
	stem := name
	if e := filepath.Ext(name); strings.EqualFold(e, normalizeExtension(ext)) {
		stem = strings.TrimSuffix(name, e)
	}

	parts := strings.Split(stem, "_")
	if len(parts) != 2 {
		return DatasetKey{}, fmt.Errorf("expected {PAIR}_{TIMEFRAME}, got %q", name)
	}
	pair, err := market.ParsePair(parts[0])
	if err != nil {
		return DatasetKey{}, err
	}
	tf, err := market.ParseTimeframe(parts[1])
	if err != nil {
		return DatasetKey{}, err
	}
	return DatasetKey{Pair: pair, Timeframe: tf}, nil
}

// GroupUnits groups discovered files by dataset. Units are ordered by pair then
// timeframe duration; files inside a unit are ordered by name, which keeps
// date-ranged exports in chronological order.
func GroupUnits(files []DiscoveredFile) []ImportUnit {
	byKey := make(map[DatasetKey][]string)
	for _, f := range files {
		byKey[f.Key] = append(byKey[f.Key], f.Path)
	}

	units := make([]ImportUnit, 0, len(byKey))
	for key, paths := range byKey {
		slices.SortFunc(paths, func(a, b string) int {
			if c := strings.Compare(filepath.Base(a), filepath.Base(b)); c != 0 {
				return c
			}
			return strings.Compare(a, b)
		})
		units = append(units, ImportUnit{Key: key, Files: slices.Compact(paths)})
	}
	slices.SortFunc(units, func(a, b ImportUnit) int { return CompareKeys(a.Key, b.Key) })
	return units
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ".csv"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func hasExtension(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
