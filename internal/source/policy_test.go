package source_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medparse/internal/domain"
	"medparse/internal/source"
)

func TestPolicy_LocalPaths(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploads, 0o755))
	inside := filepath.Join(uploads, "report.pdf")
	require.NoError(t, os.WriteFile(inside, []byte("%PDF"), 0o600))
	outside := filepath.Join(dir, "secret.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("%PDF"), 0o600))

	policy := source.Policy{Roots: []string{uploads}, StaticPath: "/api/static/uploads/"}

	tests := []struct {
		name string
		ref  string
		ok   bool
	}{
		{"inside upload dir", inside, true},
		{"static upload url", "http://localhost:3000/api/static/uploads/report.pdf", true},
		{"absolute path outside", outside, false},
		{"system file", "/etc/passwd", false},
		{"dot-dot escape", filepath.Join(uploads, "..", "secret.pdf"), false},
		{"upload dir itself", uploads, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := policy.Check(tt.ref)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, domain.ErrInvalidSource), "got %v", err)
		})
	}
}

func TestPolicy_SymlinkOutOfUploads(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploads, 0o755))
	outside := filepath.Join(dir, "secret.pdf")
	require.NoError(t, os.WriteFile(outside, []byte("%PDF"), 0o600))
	link := filepath.Join(uploads, "link.pdf")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := source.Policy{Roots: []string{uploads}}.Check(link)

	assert.True(t, errors.Is(err, domain.ErrInvalidSource))
}

func TestPolicy_RemoteHosts(t *testing.T) {
	open := source.Policy{}
	tests := []struct {
		ref string
		ok  bool
	}{
		{"https://bucket.s3.amazonaws.com/uploads/a.pdf?X-Amz-Signature=x", true},
		{"http://localhost:8080/admin", false},
		{"http://127.0.0.1/latest", false},
		{"http://169.254.169.254/latest/meta-data/", false},
		{"http://10.0.0.5/internal.pdf", false},
		{"http://[::1]/a.pdf", false},
	}
	for _, tt := range tests {
		_, err := open.Check(tt.ref)
		if tt.ok {
			assert.NoError(t, err, tt.ref)
		} else {
			assert.True(t, errors.Is(err, domain.ErrInvalidSource), tt.ref)
		}
	}

	restricted := source.Policy{Hosts: []string{"uploads.example.com", ".s3.amazonaws.com"}}
	_, err := restricted.Check("https://uploads.example.com/a.pdf")
	assert.NoError(t, err)
	_, err = restricted.Check("https://bucket.s3.amazonaws.com/a.pdf")
	assert.NoError(t, err)
	_, err = restricted.Check("https://evil.example.net/a.pdf")
	assert.True(t, errors.Is(err, domain.ErrInvalidSource))
}
