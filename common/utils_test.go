package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRunID(t *testing.T) {
	first := GenerateRunID()
	second := GenerateRunID()

	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestIsRemotePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"https://example.com/channels.yaml", true},
		{"http://example.com/channels.yaml", true},
		{"channels.yaml", false},
		{"/etc/channels.yaml", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRemotePath(tt.path))
		})
	}
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.txt")
	content := "# featured\nUC123\n\n  UC456  \n#UC789\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"UC123", "UC456"}, lines)
}

func TestReadLinesMissingFile(t *testing.T) {
	_, err := ReadLines(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestDownloadURLFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels.yaml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("channels: []\n"))
	}))
	defer srv.Close()

	t.Run("success", func(t *testing.T) {
		path, err := DownloadURLFile(context.Background(), srv.URL+"/channels.yaml")
		require.NoError(t, err)
		defer os.Remove(path)

		assert.Equal(t, ".yaml", filepath.Ext(path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "channels: []\n", string(data))
	})

	t.Run("bad status", func(t *testing.T) {
		_, err := DownloadURLFile(context.Background(), srv.URL+"/missing.yaml")
		assert.ErrorContains(t, err, "bad status code: 404")
	})
}

func TestDownloadURLFileTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte("UC1\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)

	_, err := DownloadURLFile(context.Background(), srv.URL+"/channels.txt")
	require.ErrorContains(t, err, "failed to write to file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial download is removed")
}
