package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "sentinel-2", GenerateSlug("Sentinel 2", "-"))
	assert.Equal(t, "boundaries", GenerateSlug("boundaries", "-"))
	assert.Equal(t, "greater-manchester-buc", GenerateSlug("  Greater   Manchester BUC ", "-"))
	assert.Equal(t, "a_b", GenerateSlug("A B", "_"))
}

func TestGenerateDataPath(t *testing.T) {
	// Mock
	root := t.TempDir()

	// Tested code
	path, err := GenerateDataPath(root, "Sentinel 2", "gm-surface-reflectance_composite__2019", "tif")

	// Asserts
	assert.Nil(t, err)
	assert.Equal(t, filepath.Join(root, "sentinel-2", "gm-surface-reflectance_composite__2019.tif"), path)
	info, statErr := os.Stat(filepath.Join(root, "sentinel-2"))
	assert.Nil(t, statErr)
	assert.True(t, info.IsDir())
}

func TestGenerateDataPathTrimsExtensionDot(t *testing.T) {
	root := t.TempDir()
	path, err := GenerateDataPath(root, "boundaries", "geom-mca-codes_2024", ".geojson")
	assert.Nil(t, err)
	assert.Equal(t, filepath.Join(root, "boundaries", "geom-mca-codes_2024.geojson"), path)
}

func TestNewPathsLayout(t *testing.T) {
	paths := NewPaths("testdata-root")
	assert.Equal(t, filepath.Join("testdata-root", "raw"), paths.Raw)
	assert.Equal(t, filepath.Join("testdata-root", "logs"), paths.Logs)
	assert.Equal(t, filepath.Join("testdata-root", "processed"), paths.Processed)
	assert.Equal(t, filepath.Join("testdata-root", "archive"), paths.Archive)
}

func TestPathsEnsure(t *testing.T) {
	root := t.TempDir()
	paths := NewPaths(filepath.Join(root, "data"))
	assert.Nil(t, paths.Ensure())
	for _, dir := range []string{paths.Raw, paths.Logs, paths.Processed, paths.Archive} {
		info, err := os.Stat(dir)
		assert.Nil(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPsuUUIDFormat(t *testing.T) {
	id, err := PsuUUID()
	assert.Nil(t, err)
	assert.Len(t, id, 36)
	another, _ := PsuUUID()
	assert.NotEqual(t, id, another)
}
