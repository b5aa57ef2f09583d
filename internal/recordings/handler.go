package recordings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/screenloom/backend/internal/models"
	"github.com/screenloom/backend/pkg/response"
	"github.com/screenloom/backend/pkg/storage"
)

// Handler handles recording HTTP endpoints.
type Handler struct {
	store          *Store
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a recordings handler. maxUploadBytes is the upload size
// ceiling; requests above it are rejected before buffering.
func NewHandler(store *Store, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Register mounts the recording routes on the given router group.
func (h *Handler) Register(api gin.IRouter) {
	api.GET("/recordings", h.List)
	api.POST("/recordings", h.Create)
	api.GET("/recordings/:id", h.GetByID)
	api.GET("/recordings/:id/download", h.Download)
	api.GET("/recordings/:id/stream", h.Stream)
	api.DELETE("/recordings/:id", h.Delete)
	api.GET("/storage/stats", h.StorageStats)
}

// List handles GET /api/recordings. Newest first.
func (h *Handler) List(c *gin.Context) {
	response.OK(c, h.store.List())
}

// GetByID handles GET /api/recordings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	rec, ok := h.store.Get(id)
	if !ok {
		response.NotFound(c, "Recording not found")
		return
	}
	response.OK(c, rec)
}

// Create handles POST /api/recordings: multipart body with a "video" file
// part and a "metadata" JSON part. The metadata is validated before any blob
// write; fileSize in the metadata is ignored in favor of the received length.
func (h *Handler) Create(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		response.PayloadTooLarge(c, "Upload exceeds size limit")
		return
	}
	// Backstop for chunked requests without a Content-Length.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	metaRaw := c.PostForm("metadata")
	if metaRaw == "" {
		response.BadRequest(c, "No metadata provided")
		return
	}
	var meta models.ClientMetadata
	if err := json.Unmarshal([]byte(metaRaw), &meta); err != nil {
		response.BadRequest(c, "Invalid metadata")
		return
	}
	if err := meta.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		response.BadRequest(c, "No video file provided")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "Failed to save recording")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("read uploaded file failed", zap.Error(err))
		response.Internal(c, "Failed to save recording")
		return
	}

	rec, err := h.store.Create(meta, data)
	if err != nil {
		h.logger.Error("create recording failed", zap.Error(err), zap.String("title", meta.Title))
		response.Internal(c, "Failed to save recording")
		return
	}
	h.logger.Info("recording stored",
		zap.Int("id", rec.ID),
		zap.String("filename", rec.Filename),
		zap.Int64("size", rec.FileSize),
	)
	response.OK(c, rec)
}

// Download handles GET /api/recordings/:id/download: the raw video as an
// attachment named after the display title.
func (h *Handler) Download(c *gin.Context) {
	rec, data, ok := h.recordingBlob(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Title+"."+string(rec.Format)))
	c.Data(http.StatusOK, rec.Format.MimeType(), data)
}

// Stream handles GET /api/recordings/:id/stream: the raw video inline.
func (h *Handler) Stream(c *gin.Context) {
	rec, data, ok := h.recordingBlob(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, rec.Format.MimeType(), data)
}

// Delete handles DELETE /api/recordings/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.recordingID(c)
	if !ok {
		return
	}
	if !h.store.Delete(id) {
		response.NotFound(c, "Recording not found")
		return
	}
	response.OKMessage(c, "Recording deleted successfully")
}

// StorageStats handles GET /api/storage/stats.
func (h *Handler) StorageStats(c *gin.Context) {
	response.OK(c, h.store.Stats())
}

func (h *Handler) recordingID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid recording id")
		return 0, false
	}
	return id, true
}

// recordingBlob resolves :id to a row plus its blob bytes. A row whose blob
// is unexpectedly missing reports not-found rather than an internal error.
func (h *Handler) recordingBlob(c *gin.Context) (models.Recording, []byte, bool) {
	id, ok := h.recordingID(c)
	if !ok {
		return models.Recording{}, nil, false
	}
	rec, ok := h.store.Get(id)
	if !ok {
		response.NotFound(c, "Recording not found")
		return models.Recording{}, nil, false
	}
	data, err := h.store.ReadBlob(rec.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(c, "Recording file not found")
		} else {
			h.logger.Error("read recording blob failed", zap.Error(err), zap.Int("id", id))
			response.Internal(c, "Failed to read recording")
		}
		return models.Recording{}, nil, false
	}
	return rec, data, true
}
