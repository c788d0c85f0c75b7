package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFilesWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))

	writeFeature(t, dir, "b.feature", passingFeature)
	writeFeature(t, dir, "a.feature", passingFeature)
	writeFeature(t, sub, "c.feature", passingFeature)
	writeFeature(t, dir, "notes.txt", "not a feature")

	files, err := FeatureFiles([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.feature"),
		filepath.Join(dir, "b.feature"),
		filepath.Join(sub, "c.feature"),
	}, files)
}

func TestFeatureFilesPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFeature(t, dir, "single.feature", passingFeature)

	files, err := FeatureFiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestFeatureFilesListFile(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "one.feature", passingFeature)
	writeFeature(t, dir, "two.feature", passingFeature)
	list := filepath.Join(dir, "suite.txt")
	require.NoError(t, os.WriteFile(list, []byte(`
# smoke suite
one.feature

two.feature
`), 0o644))

	files, err := FeatureFiles([]string{"@" + list})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "one.feature"),
		filepath.Join(dir, "two.feature"),
	}, files)
}

func TestFeatureFilesMissingPath(t *testing.T) {
	_, err := FeatureFiles([]string{filepath.Join(t.TempDir(), "absent")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't find path")
}

func TestFeatureFilesMissingListFile(t *testing.T) {
	_, err := FeatureFiles([]string{"@" + filepath.Join(t.TempDir(), "absent.txt")})
	require.Error(t, err)
}
