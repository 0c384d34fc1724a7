// Package report writes run summaries to disk.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Encode renders s in format.
func Encode(s ingest.RunSummary, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return json.MarshalIndent(s, "", "  ")
	case FormatYAML, "yml":
		return yaml.Marshal(s)
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// Write stores s at path, creating parent directories.
func Write(path, format string, s ingest.RunSummary) error {
	data, err := Encode(s, format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
