package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// FolderManager manages one output folder per claim run: {baseDir}/{runID}/
type FolderManager struct {
	baseDir string
	logger  *zap.Logger
}

// NewFolderManager creates a new FolderManager
func NewFolderManager(baseDir string, logger *zap.Logger) *FolderManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderManager{
		baseDir: baseDir,
		logger:  logger,
	}
}

// CreateRunFolder creates the folder of a run and returns its path
func (m *FolderManager) CreateRunFolder(runID string) (string, error) {
	safeName := SanitizeName(runID)
	if safeName == "" {
		return "", fmt.Errorf("cannot create folder: invalid run ID %q", runID)
	}

	folderPath := filepath.Join(m.baseDir, safeName)
	if err := os.MkdirAll(folderPath, 0755); err != nil {
		m.logger.Error("Failed to create run folder",
			zap.String("run_id", runID),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	m.logger.Debug("Created run folder",
		zap.String("run_id", runID),
		zap.String("folder_path", folderPath))
	return folderPath, nil
}

// RunFolderPath returns the folder of a run without creating it
func (m *FolderManager) RunFolderPath(runID string) string {
	return filepath.Join(m.baseDir, SanitizeName(runID))
}

// FolderExists checks if the run folder exists
func (m *FolderManager) FolderExists(runID string) bool {
	if SanitizeName(runID) == "" {
		return false
	}
	info, err := os.Stat(m.RunFolderPath(runID))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// DeleteRunFolder removes a run folder and its outputs. Missing folders are not an error.
func (m *FolderManager) DeleteRunFolder(runID string) error {
	if SanitizeName(runID) == "" {
		return nil
	}
	folderPath := m.RunFolderPath(runID)
	if _, err := os.Stat(folderPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(folderPath); err != nil {
		m.logger.Error("Failed to delete run folder",
			zap.String("run_id", runID),
			zap.String("folder_path", folderPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete folder: %w", err)
	}

	m.logger.Debug("Deleted run folder",
		zap.String("run_id", runID),
		zap.String("folder_path", folderPath))
	return nil
}

// SanitizeName returns a filesystem-safe version of a name: path separators,
// parent references and anything but letters, digits, '-' and '_' are removed
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return unsafeNameChars.ReplaceAllString(name, "")
}
