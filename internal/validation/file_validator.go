package validation

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "firdscli/internal/errors"
)

// Local file headers and the end-of-central-directory record of an empty
// archive both start with "PK".
var zipSignatures = [][]byte{
	[]byte("PK\x03\x04"),
	[]byte("PK\x05\x06"),
}

// FileValidator checks the files and directories a run depends on before any
// network work starts
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateOutputDirectory ensures output directory exists or can be created
// and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("output_dir_create_failed",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewOutputError(fmt.Sprintf("cannot create output directory %s", dir), err)
	}

	probe, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		v.logger.Error("output_dir_not_writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewOutputError(fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("output_dir_validated", slog.String("directory", dir))
	return nil
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("file_missing", slog.String("file", path))
		return apperrors.NewConfigError(fmt.Sprintf("file %s does not exist", path), err)
	}
	if err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("cannot stat file %s", path), err)
	}
	if info.IsDir() {
		v.logger.Error("file_is_directory", slog.String("path", path))
		return apperrors.NewConfigError(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("file_unreadable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return apperrors.NewConfigError(fmt.Sprintf("file %s is not readable", path), err)
	}
	file.Close()

	v.logger.Debug("file_validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateArchiveFile checks that path is a readable zip package. Only the
// extension and the leading signature are inspected; entry contents are left
// to the archive reader.
func (v *FileValidator) ValidateArchiveFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".zip" {
		v.logger.Error("archive_wrong_extension",
			slog.String("file", path),
			slog.String("extension", ext))
		return apperrors.NewConfigError(fmt.Sprintf("file %s is not a zip package (extension: %s)", path, ext), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("file %s is not readable", path), err)
	}
	defer f.Close()

	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		return apperrors.NewArchiveError(fmt.Sprintf("%s is too short to be a zip package", path), err)
	}
	for _, sig := range zipSignatures {
		if bytes.Equal(head, sig) {
			return nil
		}
	}

	v.logger.Error("archive_bad_signature", slog.String("file", path))
	return apperrors.NewArchiveError(fmt.Sprintf("%s is not a zip package", path), nil)
}
