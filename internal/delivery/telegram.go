// Package delivery ships finished videos to the Telegram endpoint.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/amillerrr/clipforge/pkg/models"
)

const (
	// DefaultAPIBase is the Telegram Bot API endpoint.
	DefaultAPIBase = "https://api.telegram.org"

	// MaxUploadBytes is the Bot API direct-upload ceiling. Files above it
	// are rejected before any bytes leave the host.
	MaxUploadBytes = int64(49.5 * 1024 * 1024)

	sendTimeout    = 180 * time.Second
	resolveTimeout = 30 * time.Second
)

// TelegramClient talks to the Bot API for both upload-channel file
// resolution (ingestion bot token) and final delivery (send token).
type TelegramClient struct {
	botToken  string
	sendToken string
	chatID    string
	apiBase   string
	client    *http.Client
	log       *slog.Logger
}

// Config holds Telegram client dependencies.
type Config struct {
	BotToken  string
	SendToken string
	ChatID    string
	APIBase   string // defaults to DefaultAPIBase
	Logger    *slog.Logger
}

// NewTelegramClient creates a client from the given configuration.
func NewTelegramClient(cfg Config) *TelegramClient {
	base := cfg.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	return &TelegramClient{
		botToken:  cfg.BotToken,
		sendToken: cfg.SendToken,
		chatID:    cfg.ChatID,
		apiBase:   base,
		client:    &http.Client{},
		log:       cfg.Logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Deliver uploads the video at path with the given caption. A structured
// rejection from the endpoint (oversize payload, bad chat, API error
// description) comes back wrapped in ErrDeliveryRejected so the reason
// can be persisted verbatim; transport problems wrap ErrDeliveryFailed.
func (c *TelegramClient) Deliver(ctx context.Context, path, caption string) error {
	if c.sendToken == "" || c.chatID == "" {
		return fmt.Errorf("%w: send token or chat id not configured", models.ErrDeliveryRejected)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	if info.Size() > MaxUploadBytes {
		return fmt.Errorf("%w: file too large (%.2f MB) for direct upload",
			models.ErrDeliveryRejected, float64(info.Size())/(1024*1024))
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	defer file.Close()

	// Stream the multipart body so a near-50MB file is never buffered
	// whole in memory.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		var werr error
		defer func() { pw.CloseWithError(werr) }()

		if werr = writer.WriteField("chat_id", c.chatID); werr != nil {
			return
		}
		if werr = writer.WriteField("caption", caption); werr != nil {
			return
		}
		var part io.Writer
		if part, werr = writer.CreateFormFile("video", filepath.Base(path)); werr != nil {
			return
		}
		if _, werr = io.Copy(part, file); werr != nil {
			return
		}
		werr = writer.Close()
	}()

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/sendVideo", c.apiBase, c.sendToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("%w: HTTP %d: unreadable response", models.ErrDeliveryRejected, resp.StatusCode)
	}
	if !api.OK {
		detail := api.Description
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", models.ErrDeliveryRejected, detail)
	}

	c.log.Info("Delivered video", "file", filepath.Base(path), "sizeBytes", info.Size())
	return nil
}

type getFileResult struct {
	FilePath string `json:"file_path"`
}

// ResolveFileURL turns an upload-channel file reference into a direct
// download URL plus the remote file's base name.
func (c *TelegramClient) ResolveFileURL(ctx context.Context, fileID string) (string, string, error) {
	if c.botToken == "" {
		return "", "", fmt.Errorf("%w: bot token not configured", models.ErrDownloadFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/getFile?%s", c.apiBase, c.botToken,
		url.Values{"file_id": {fileID}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", models.ErrDownloadFailed, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", models.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return "", "", fmt.Errorf("%w: getFile: unreadable response", models.ErrDownloadFailed)
	}
	if !api.OK {
		return "", "", fmt.Errorf("%w: getFile: %s", models.ErrDownloadFailed, api.Description)
	}

	var result getFileResult
	if err := json.Unmarshal(api.Result, &result); err != nil || result.FilePath == "" {
		return "", "", fmt.Errorf("%w: getFile: missing file_path", models.ErrDownloadFailed)
	}

	// The file URL embeds the token; callers must not log it.
	fileURL := fmt.Sprintf("%s/file/bot%s/%s", c.apiBase, c.botToken, result.FilePath)
	return fileURL, filepath.Base(result.FilePath), nil
}
