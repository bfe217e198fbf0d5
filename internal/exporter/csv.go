package exporter

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"optchain/internal/config"
	apperrors "optchain/internal/errors"
	"optchain/internal/infrastructure"
)

// CSVWriter appends rows to CSV files under the configured base
// directory. Files are append-only: the header is written by whichever
// call creates the file and never again.
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer rooted at paths.BaseDir
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	return &CSVWriter{
		paths:  paths,
		logger: infrastructure.WithComponent(infrastructure.LoggerOrDefault(logger), "csv_writer"),
	}
}

// AppendRow appends one row to path. header is written first only when
// the file does not exist yet and header is non-empty.
func (w *CSVWriter) AppendRow(path string, row []string, header []string) error {
	return w.AppendManyRows(path, [][]string{row}, header)
}

// AppendManyRows appends rows to path in a single write. Failures are
// logged and returned as storage errors; nothing is retried.
func (w *CSVWriter) AppendManyRows(path string, rows [][]string, header []string) error {
	fullPath := w.resolvePath(path)

	if len(rows) == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return w.fail("failed to create directory", path, fullPath, len(rows), err)
	}

	file, created, err := openForAppend(fullPath)
	if err != nil {
		return w.fail("failed to open file", path, fullPath, len(rows), err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if created && len(header) > 0 {
		if err := writer.Write(header); err != nil {
			return w.fail("failed to encode header", path, fullPath, len(rows), err)
		}
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return w.fail("failed to encode row", path, fullPath, len(rows), err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return w.fail("failed to encode rows", path, fullPath, len(rows), err)
	}

	// One write per call keeps each batch contiguous in O_APPEND mode.
	if _, err := file.Write(buf.Bytes()); err != nil {
		return w.fail("failed to write rows", path, fullPath, len(rows), err)
	}
	if err := file.Close(); err != nil {
		return w.fail("failed to close file", path, fullPath, len(rows), err)
	}

	w.logger.Debug("Appended CSV rows",
		slog.String("file_path", path),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(rows)),
		slog.Bool("header_written", created && len(header) > 0))

	return nil
}

// openForAppend opens fullPath for appending and reports whether this
// call created it.
func openForAppend(fullPath string) (*os.File, bool, error) {
	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0644)
	if err == nil {
		return file, true, nil
	}
	if !stderrors.Is(err, fs.ErrExist) {
		return nil, false, err
	}

	file, err = os.OpenFile(fullPath, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, err
	}
	return file, false, nil
}

func (w *CSVWriter) fail(msg, path, fullPath string, count int, cause error) error {
	w.logger.Error(msg,
		slog.String("file_path", path),
		slog.String("full_path", fullPath),
		slog.Int("record_count", count),
		slog.String("error", cause.Error()))

	return apperrors.NewStorageError(msg, cause).
		WithContext("path", path).
		WithContext("full_path", fullPath)
}

// ReadCSV reads path using its first row as field names. A missing file
// yields an empty result. Short rows leave trailing fields empty.
func (w *CSVWriter) ReadCSV(path string) ([]map[string]string, error) {
	fullPath := w.resolvePath(path)

	file, err := os.Open(fullPath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return []map[string]string{}, nil
		}
		return nil, apperrors.NewStorageError("failed to open file", err).WithContext("path", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []map[string]string{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read header", err).WithContext("path", path)
	}
	if len(header) > 0 {
		header[0] = stripBOM(header[0])
	}

	records := make([]map[string]string, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewStorageError("failed to read row", err).
				WithContext("path", path).
				WithContext("row", len(records)+1)
		}

		record := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(row) {
				record[name] = row[i]
			} else {
				record[name] = ""
			}
		}
		records = append(records, record)
	}

	return records, nil
}

// BaseDir returns the directory relative paths resolve against.
func (w *CSVWriter) BaseDir() string {
	return w.paths.BaseDir
}

func stripBOM(s string) string {
	return string(bytes.TrimPrefix([]byte(s), []byte{0xEF, 0xBB, 0xBF}))
}

// resolvePath resolves a relative path against the base directory
func (w *CSVWriter) resolvePath(filePath string) string {
	return w.paths.GetDataPath(filepath.FromSlash(filePath))
}
