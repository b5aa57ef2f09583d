// Package apiclient is the client-side REST client for the recordings API.
// It implements capture.Uploader and keeps a cached copy of the recording
// list and storage stats, invalidated after every successful upload or
// delete.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/screenloom/backend/internal/capture"
	"github.com/screenloom/backend/internal/models"
)

// Client talks to the recordings backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu          sync.Mutex
	cachedList  []models.Recording
	cachedStats *models.StorageStats
}

// New creates a client for the API at baseURL (e.g. http://localhost:8080).
func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Minute},
		logger:  logger,
	}
}

// Upload sends a finished recording as a multipart request: a metadata JSON
// part and the video bytes. fileSize is deliberately omitted from the
// metadata; the server measures the received bytes itself.
func (c *Client) Upload(ctx context.Context, req capture.UploadRequest) error {
	meta := models.ClientMetadata{
		Title:    req.Title,
		Filename: filenameHint(req.Title, req.Format),
		Duration: req.Duration,
		Format:   req.Format,
		HasAudio: &req.HasAudio,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("metadata", string(metaJSON)); err != nil {
		return fmt.Errorf("write metadata part: %w", err)
	}
	fw, err := mw.CreateFormFile("video", meta.Filename)
	if err != nil {
		return fmt.Errorf("create video part: %w", err)
	}
	if _, err := fw.Write(req.Data); err != nil {
		return fmt.Errorf("write video part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/recordings", &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	c.Invalidate()
	c.logger.Info("recording uploaded", zap.String("title", req.Title), zap.Int("bytes", len(req.Data)))
	return nil
}

// Recordings returns the recording list, newest first, from cache when warm.
func (c *Client) Recordings(ctx context.Context) ([]models.Recording, error) {
	c.mu.Lock()
	if c.cachedList != nil {
		list := c.cachedList
		c.mu.Unlock()
		return list, nil
	}
	c.mu.Unlock()

	var list []models.Recording
	if err := c.getJSON(ctx, "/api/recordings", &list); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cachedList = list
	c.mu.Unlock()
	return list, nil
}

// Recording returns one recording by id. Not cached.
func (c *Client) Recording(ctx context.Context, id int) (*models.Recording, error) {
	var rec models.Recording
	if err := c.getJSON(ctx, fmt.Sprintf("/api/recordings/%d", id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// StorageStats returns the aggregate storage accounting, from cache when warm.
func (c *Client) StorageStats(ctx context.Context) (models.StorageStats, error) {
	c.mu.Lock()
	if c.cachedStats != nil {
		stats := *c.cachedStats
		c.mu.Unlock()
		return stats, nil
	}
	c.mu.Unlock()

	var stats models.StorageStats
	if err := c.getJSON(ctx, "/api/storage/stats", &stats); err != nil {
		return models.StorageStats{}, err
	}
	c.mu.Lock()
	c.cachedStats = &stats
	c.mu.Unlock()
	return stats, nil
}

// Delete removes a recording and invalidates the caches.
func (c *Client) Delete(ctx context.Context, id int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/api/recordings/%d", c.baseURL, id), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	c.Invalidate()
	return nil
}

// Invalidate drops the cached list and stats so the next read is fresh.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cachedList = nil
	c.cachedStats = nil
	c.mu.Unlock()
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// apiError extracts the server's {"message": ...} body when present.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var msg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &msg) == nil && msg.Message != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg.Message)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// filenameHint builds the upload filename hint from the display title, with
// unsafe characters replaced. Only its extension matters to the server.
func filenameHint(title string, format models.Format) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String() + "." + string(format)
}
