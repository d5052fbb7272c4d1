package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// File validation errors
var (
	ErrFileNotFound  = errors.New("file does not exist")
	ErrNotAFile      = errors.New("path is a directory")
	ErrNotWorkbook   = errors.New("not an Excel workbook")
	ErrTempWorkbook  = errors.New("temporary Excel lock file")
	ErrFileTooLarge  = errors.New("file too large")
	ErrBadOutputPath = errors.New("unsupported output file type")
)

// WorkbookExtensions are the formats the workbook reader can open.
var WorkbookExtensions = []string{".xlsx", ".xlsm", ".xltx", ".xltm"}

// FileValidator checks input workbooks and output paths before any work
// starts, so the CLI and the server fail with a clear message.
type FileValidator struct {
	logger  *slog.Logger
	maxSize int64
}

// NewFileValidator creates a validator rejecting workbooks over maxSize
// bytes. maxSize <= 0 disables the size check.
func NewFileValidator(logger *slog.Logger, maxSize int64) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger:  logger.With(slog.String("component", "file_validator")),
		maxSize: maxSize,
	}
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		v.logger.Error("File does not exist", slog.String("file", path))
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file", slog.String("path", path))
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	return info, nil
}

// ValidateWorkbook checks that path is a readable workbook of an accepted
// format and size.
func (v *FileValidator) ValidateWorkbook(path string) error {
	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Rejecting temporary Excel file", slog.String("file", path))
		return fmt.Errorf("%w: %s", ErrTempWorkbook, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !hasExtension(ext, WorkbookExtensions) {
		v.logger.Error("File is not an Excel workbook",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("%w: %s (extension %q)", ErrNotWorkbook, path, ext)
	}

	info, err := v.ValidateFile(path)
	if err != nil {
		return err
	}

	if v.maxSize > 0 && info.Size() > v.maxSize {
		v.logger.Error("Workbook exceeds size limit",
			slog.String("file", path),
			slog.Int64("size", info.Size()),
			slog.Int64("max_size", v.maxSize))
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, path, info.Size(), v.maxSize)
	}

	v.logger.Debug("Workbook validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputFile checks that path has one of the allowed extensions and
// that its directory exists or can be created and written.
func (v *FileValidator) ValidateOutputFile(path string, allowed ...string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if len(allowed) > 0 && !hasExtension(ext, allowed) {
		return fmt.Errorf("%w: %s (want one of %s)", ErrBadOutputPath, path, strings.Join(allowed, ", "))
	}
	return v.ValidateOutputDirectory(filepath.Dir(path))
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	file, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := file.Name()
	file.Close()
	os.Remove(name)

	return nil
}

func hasExtension(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}
