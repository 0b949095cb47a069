package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/amillerrr/clipforge/pkg/models"
)

const downloadTimeout = 90 * time.Second

// FileResolver turns a bot file identifier into a fetchable URL and a
// suggested file name. The Telegram client implements this.
type FileResolver interface {
	ResolveFileURL(ctx context.Context, fileID string) (string, string, error)
}

// HTTPDownloader fetches source videos into the download directory. URL
// sources are fetched directly; upload-channel sources are resolved through
// the bot API first.
type HTTPDownloader struct {
	client      *http.Client
	resolver    FileResolver
	downloadDir string
	log         *slog.Logger
}

func NewHTTPDownloader(resolver FileResolver, downloadDir string, log *slog.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		client:      &http.Client{Timeout: downloadTimeout},
		resolver:    resolver,
		downloadDir: downloadDir,
		log:         log,
	}
}

// Download retrieves the item's source media and returns the local path.
func (d *HTTPDownloader) Download(ctx context.Context, item *models.QueueItem) (string, error) {
	if err := os.MkdirAll(d.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create download dir: %v", models.ErrDownloadFailed, err)
	}

	switch item.SourceKind {
	case models.SourceURL:
		dest := filepath.Join(d.downloadDir, fmt.Sprintf("%d.mp4", time.Now().UnixMilli()))
		if err := d.fetch(ctx, item.SourceLocator, dest, true); err != nil {
			return "", err
		}
		return dest, nil

	case models.SourceUploadChannel:
		if d.resolver == nil {
			return "", fmt.Errorf("%w: no file resolver configured", models.ErrDownloadFailed)
		}
		fileURL, name, err := d.resolver.ResolveFileURL(ctx, item.SourceLocator)
		if err != nil {
			return "", fmt.Errorf("%w: resolve file: %v", models.ErrDownloadFailed, err)
		}
		if name == "" {
			name = fmt.Sprintf("%d.mp4", time.Now().UnixMilli())
		}
		dest := filepath.Join(d.downloadDir, name)
		if err := d.fetch(ctx, fileURL, dest, false); err != nil {
			return "", err
		}
		return dest, nil

	default:
		return "", fmt.Errorf("%w: %q", models.ErrInvalidSourceKind, item.SourceKind)
	}
}

func (d *HTTPDownloader) fetch(ctx context.Context, url, dest string, browserHeaders bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDownloadFailed, err)
	}
	if browserHeaders {
		// Some CDNs reject requests without a browser-looking client.
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
		req.Header.Set("Accept", "*/*")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", models.ErrDownloadFailed, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDownloadFailed, err)
	}
	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("%w: %v", models.ErrDownloadFailed, err)
	}
	if written == 0 {
		os.Remove(dest)
		return fmt.Errorf("%w: empty response body", models.ErrDownloadFailed)
	}

	d.log.Info("source downloaded", "dest", dest, "bytes", written)
	return nil
}
