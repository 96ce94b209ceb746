// Package download fetches source files into a module data directory and
// reuses the cached copy on later runs.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyURL   = errors.New("download: empty url")
	ErrBadStatus  = errors.New("download: unexpected status")
	ErrBadScheme  = errors.New("download: unsupported url scheme")
	defaultClient = &http.Client{Timeout: 10 * time.Minute}
)

// EnsurePath returns path, fetching rawURL into it first when the file is
// missing or force is set. file:// URLs and bare paths are copied.
func EnsurePath(ctx context.Context, client *http.Client, rawURL, path string, force bool) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}
	if !force {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			log.Debug().Str("path", path).Msg("download.EnsurePath cached")
			return path, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	src, err := open(ctx, client, rawURL)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	n, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("download %s: %w", rawURL, errors.Join(copyErr, closeErr))
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	log.Info().Str("url", rawURL).Str("path", path).Int64("bytes", n).Msg("download.EnsurePath fetched")
	return path, nil
}

func open(ctx context.Context, client *http.Client, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("download parse url %q: %w", rawURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "file":
		return os.Open(u.Path)
	case "":
		return os.Open(rawURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadScheme, u.Scheme)
	}

	if client == nil {
		client = defaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrBadStatus, rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}
