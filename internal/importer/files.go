package importer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
)

// maxLoggedErrors caps how many parse errors are logged per file.
// The summary always keeps the full list.
const maxLoggedErrors = 10

// logFileInfo logs the size and line count of path at debug level.
func logFileInfo(logger *zap.Logger, path string) {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	lines, err := countLines(path)
	if err != nil {
		return
	}
	logger.Debug("reading file",
		zap.String("file", filepath.Base(path)),
		zap.Int64("bytes", info.Size()),
		zap.Int("lines", lines))
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	n := 0
	for {
		c, err := f.Read(buf)
		n += bytes.Count(buf[:c], []byte{'\n'})
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}

// foldReport records one file's parse outcome in stats and returns its summary.
// Errors are prefixed with the file name.
func foldReport(logger *zap.Logger, path string, report *ingest.ParseReport, stats *ingest.Stats) ingest.FileSummary {
	name := filepath.Base(path)
	fs := ingest.FileSummary{Path: path, ParseReport: *report}

	stats.Rejected += report.Rejected
	stats.Filtered += report.Filtered
	for _, msg := range report.Errors {
		stats.AddError("%s: %s", name, msg)
	}
	if report.Err != nil {
		fs.Error = report.Err.Error()
		stats.AddError("%s: %v", name, report.Err)
		logger.Warn("file read failed", zap.String("file", name), zap.Error(report.Err))
	}

	for i, msg := range report.Errors {
		if i == maxLoggedErrors {
			logger.Warn("more parse errors omitted", zap.String("file", name), zap.Int("omitted", len(report.Errors)-maxLoggedErrors))
			break
		}
		logger.Warn("line rejected", zap.String("file", name), zap.String("reason", msg))
	}
	logger.Info("file parsed",
		zap.String("file", name),
		zap.Int("lines", report.Lines),
		zap.Int("valid", report.Valid),
		zap.Int("filtered", report.Filtered),
		zap.Int("rejected", report.Rejected))
	return fs
}
