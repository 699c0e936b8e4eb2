package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileType represents the kind of generated output being stored
type FileType int

const (
	FileTypeGeneric FileType = iota
	FileTypeExcel
	FileTypeCSV
)

// FileTypeOf guesses the file type from an extension
func FileTypeOf(name string) FileType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FileTypeExcel
	case ".csv":
		return FileTypeCSV
	}
	return FileTypeGeneric
}

// ContentType returns the MIME type used when serving the file
func (t FileType) ContentType() string {
	switch t {
	case FileTypeExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FileTypeCSV:
		return "text/csv; charset=utf-8"
	}
	return "application/octet-stream"
}

// ErrPathEscapesBase is returned for paths outside the storage directory
var ErrPathEscapesBase = errors.New("path escapes base directory")

// FileStorage defines the interface for output file operations
type FileStorage interface {
	// SaveFile writes content to fullPath, creating parent directories
	SaveFile(fullPath string, content []byte) error

	// ReadFile returns the content of a stored file
	ReadFile(fullPath string) ([]byte, error)

	// ValidatePath checks path security (no traversal, within base)
	ValidatePath(fullPath string) error
}

// LocalFileStorage implements FileStorage for local filesystem
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage
func NewLocalFileStorage(baseDir string, logger *zap.Logger) *LocalFileStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// BaseDir returns the storage root
func (s *LocalFileStorage) BaseDir() string {
	return s.baseDir
}

// SaveFile writes content to the specified full path
func (s *LocalFileStorage) SaveFile(fullPath string, content []byte) error {
	if err := s.ValidatePath(fullPath); err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// write then rename, so a download never sees a half-written workbook
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int("size", len(content)),
		zap.String("content_type", FileTypeOf(fullPath).ContentType()))
	return nil
}

// ReadFile returns the content of a file inside the base directory
func (s *LocalFileStorage) ReadFile(fullPath string) ([]byte, error) {
	if err := s.ValidatePath(fullPath); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// ValidatePath checks that the path is safe and within baseDir
func (s *LocalFileStorage) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("%w: %s", ErrPathEscapesBase, fullPath)
	}
	return nil
}
