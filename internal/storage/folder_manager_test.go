package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFolderManager_CreateRunFolder(t *testing.T) {
	tempDir := t.TempDir()
	logger, _ := zap.NewDevelopment()
	fm := NewFolderManager(tempDir, logger)

	t.Run("creates folder for a uuid", func(t *testing.T) {
		runID := "6a3847a3-14f5-4c7e-a5d1-26c7fb0bf6ef"

		folderPath, err := fm.CreateRunFolder(runID)

		require.NoError(t, err)
		assert.DirExists(t, folderPath)
		assert.Equal(t, filepath.Join(tempDir, runID), folderPath)
		assert.True(t, fm.FolderExists(runID))
	})

	t.Run("is idempotent", func(t *testing.T) {
		first, err := fm.CreateRunFolder("run-1")
		require.NoError(t, err)
		second, err := fm.CreateRunFolder("run-1")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("sanitizes traversal", func(t *testing.T) {
		folderPath, err := fm.CreateRunFolder("../../etc")

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tempDir, "etc"), folderPath)
	})

	t.Run("rejects names that sanitize to nothing", func(t *testing.T) {
		_, err := fm.CreateRunFolder("../")
		assert.Error(t, err)
	})
}

func TestFolderManager_DeleteRunFolder(t *testing.T) {
	tempDir := t.TempDir()
	fm := NewFolderManager(tempDir, nil)

	folderPath, err := fm.CreateRunFolder("run-2")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(folderPath, "claim.csv"), []byte("x"), 0644))

	require.NoError(t, fm.DeleteRunFolder("run-2"))
	assert.NoDirExists(t, folderPath)
	assert.False(t, fm.FolderExists("run-2"))

	// deleting again is fine
	assert.NoError(t, fm.DeleteRunFolder("run-2"))
	assert.NoError(t, fm.DeleteRunFolder(""))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"run-1", "run-1"},
		{"run_2024", "run_2024"},
		{"../secret", "secret"},
		{"a/b\\c", "abc"},
		{"claim form!", "claimform"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}
