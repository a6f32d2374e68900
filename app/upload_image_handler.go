package app

import (
	"bytes"
	"catalog/internal/metrics"
	"catalog/pkg/events"
	"catalog/pkg/httperror"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/image/webp"
)

const (
	MaxImageBytes     = 1 << 20
	MaxImageDimension = 1920
	imageMIME         = "image/webp"
)

var ImageBuckets = []string{"products", "categories"}

// ObjectStorage is the bucket images are written to.
type ObjectStorage interface {
	Upload(key string, data []byte) error
	Delete(key string) error
	PublicURL(key string) string
}

type fiberContextKey struct{}

func WithFiberContext(ctx context.Context, c *fiber.Ctx) context.Context {
	return context.WithValue(ctx, fiberContextKey{}, c)
}

type UploadImageHandler struct {
	storage ObjectStorage
	hooks   *MutationHooks
}

func NewUploadImageHandler(storage ObjectStorage, hooks *MutationHooks) *UploadImageHandler {
	return &UploadImageHandler{
		storage: storage,
		hooks:   hooks,
	}
}

type UploadImageRequest struct {
	Bucket string `params:"bucket" validate:"required,oneof=products categories"`
}

type UploadImageResponse struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

func (h *UploadImageHandler) Handle(ctx context.Context, req *UploadImageRequest) (*UploadImageResponse, error) {
	if err := validateRequest("upload.validation_failed", req); err != nil {
		return nil, err
	}

	c, ok := ctx.Value(fiberContextKey{}).(*fiber.Ctx)
	if !ok {
		return nil, httperror.InternalServerError("upload.no_context", "Fiber context not found", nil)
	}

	file, err := c.FormFile("image")
	if err != nil {
		return nil, httperror.BadRequest("upload.missing_file", "Image file is required (use 'image' field)", fiber.Map{"error": err.Error()})
	}

	if file.Size > MaxImageBytes {
		return nil, httperror.BadRequest("upload.file_too_large", "File size must not exceed 1MB",
			fiber.Map{
				"size_bytes": file.Size,
				"max_bytes":  MaxImageBytes,
			})
	}

	fileReader, err := file.Open()
	if err != nil {
		return nil, httperror.InternalServerError("upload.file_open_error", "Failed to open uploaded file", err.Error())
	}
	defer fileReader.Close()

	data, err := io.ReadAll(io.LimitReader(fileReader, MaxImageBytes+1))
	if err != nil {
		return nil, httperror.InternalServerError("upload.file_read_error", "Failed to read file content", err.Error())
	}

	if err := CheckImage(data); err != nil {
		return nil, err
	}

	return h.store(ctx, req.Bucket, data)
}

func (h *UploadImageHandler) store(ctx context.Context, bucket string, data []byte) (*UploadImageResponse, error) {
	key := fmt.Sprintf("%s/%s.webp", bucket, uuid.New().String())

	if err := h.storage.Upload(key, data); err != nil {
		zap.L().Error("Failed to upload image", zap.String("key", key), zap.Error(err))
		return nil, httperror.InternalServerError("upload.store.failed", "Failed to upload image to storage", nil)
	}
	metrics.ImageUploadBytes.Observe(float64(len(data)))

	url := h.storage.PublicURL(key)
	if h.hooks != nil {
		h.hooks.publish(ctx, events.ImageUploadedEvent, events.ImagePayload{
			Bucket: bucket,
			Path:   key,
			URL:    url,
			At:     time.Now().UTC(),
		})
	}

	return &UploadImageResponse{
		URL:  url,
		Path: key,
	}, nil
}

// CheckImage accepts the WebP the dashboard produces after compressing an
// image client side: at most 1MB and 1920px on either side.
func CheckImage(data []byte) error {
	if len(data) > MaxImageBytes {
		return httperror.BadRequest("upload.file_too_large", "File size must not exceed 1MB",
			fiber.Map{"max_bytes": MaxImageBytes})
	}

	mime := mimetype.Detect(data)
	if !mime.Is(imageMIME) {
		return httperror.BadRequest("upload.invalid_content_type", "Only WebP images are allowed",
			fiber.Map{
				"received": mime.String(),
				"allowed":  []string{imageMIME},
			})
	}

	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return httperror.BadRequest("upload.invalid_image", "Image could not be decoded", fiber.Map{"error": err.Error()})
	}

	if cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return httperror.BadRequest("upload.image_too_large", "Image must not exceed 1920px on either side",
			fiber.Map{
				"width":  cfg.Width,
				"height": cfg.Height,
				"max":    MaxImageDimension,
			})
	}
	return nil
}

type DeleteImageHandler struct {
	storage ObjectStorage
	hooks   *MutationHooks
}

func NewDeleteImageHandler(storage ObjectStorage, hooks *MutationHooks) *DeleteImageHandler {
	return &DeleteImageHandler{
		storage: storage,
		hooks:   hooks,
	}
}

type DeleteImageRequest struct {
	Bucket string `params:"bucket" validate:"required,oneof=products categories"`
	Path   string `query:"path" validate:"required,max=255"`
}

type DeleteImageResponse struct {
	Path string `json:"path"`
}

func (h *DeleteImageHandler) Handle(ctx context.Context, req *DeleteImageRequest) (*DeleteImageResponse, error) {
	if err := validateRequest("upload.delete.validation_failed", req); err != nil {
		return nil, err
	}

	if !strings.HasPrefix(req.Path, req.Bucket+"/") || strings.Contains(req.Path, "..") {
		return nil, httperror.BadRequest("upload.delete.invalid_path", "Path does not belong to the bucket",
			fiber.Map{"bucket": req.Bucket, "path": req.Path})
	}

	if err := h.storage.Delete(req.Path); err != nil {
		zap.L().Error("Failed to delete image", zap.String("key", req.Path), zap.Error(err))
		return nil, httperror.InternalServerError("upload.delete.failed", "Failed to delete image from storage", nil)
	}

	if h.hooks != nil {
		h.hooks.publish(ctx, events.ImageDeletedEvent, events.ImagePayload{
			Bucket: req.Bucket,
			Path:   req.Path,
			At:     time.Now().UTC(),
		})
	}

	return &DeleteImageResponse{
		Path: req.Path,
	}, nil
}
