package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, ValidatePathWithinDirectory(filepath.Join(dir, "report", "summary.json"), dir))
	assert.NoError(t, ValidatePathWithinDirectory(dir, dir))
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(dir, "..", "escape"), dir))
	assert.Error(t, ValidatePathWithinDirectory("/etc/passwd", dir))
}

func TestValidatePathWithinDirectory_Symlink(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(link, "new", "file.png"), dir))
}

func TestValidateExportPath(t *testing.T) {
	assert.NoError(t, ValidateExportPath(filepath.Join(os.TempDir(), "lense-report")))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.NoError(t, ValidateExportPath(filepath.Join(cwd, "reports")))
	assert.Error(t, ValidateExportPath("/proc/self/reports"))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                                     "unknown",
		"3f2a9c1e-0b6d-4a51-9e0c-2f6f7e1d8a44": "3f2a9c1e-0b6d-4a51-9e0c-2f6f7e1d8a44",
		"../../etc/passwd":                     "etc_passwd",
		"session  one!!":                       "session_one",
		"...":                                  "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}
