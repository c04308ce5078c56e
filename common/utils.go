package common

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateRunID returns a unique identifier for one aggregation run.
func GenerateRunID() string {
	return uuid.NewString()
}

// IsRemotePath reports whether path is an http(s) URL rather than a local file.
func IsRemotePath(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// DownloadURLFile downloads a file from a URL and saves it to a temporary location.
// Returns the path to the downloaded file and any error encountered.
func DownloadURLFile(ctx context.Context, url string) (string, error) {
	log.Info().Str("url", url).Msg("Downloading URL file")

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "channel-aggregator/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	// Keep the extension so callers can pick a decoder from it.
	ext := filepath.Ext(strings.SplitN(url, "?", 2)[0])
	out, err := os.CreateTemp("", "channels_*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to write to file: %w", err)
	}

	log.Info().Str("file", out.Name()).Msg("URL file downloaded successfully")
	return out.Name(), nil
}

// ReadLines reads a file one entry per line.
// It ignores empty lines and lines starting with a '#' character (comments).
func ReadLines(filename string) ([]string, error) {
	log.Debug().Str("filename", filename).Msg("Reading lines from file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}

	log.Debug().Int("line_count", len(lines)).Msg("Lines read from file")
	return lines, nil
}
