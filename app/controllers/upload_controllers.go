package controllers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/google/uuid"

	"github.com/onyxia-store/onyxia/pkg/ctx"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/storage"
)

const maxImageBytes = 5 << 20

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadController stores product images on the configured disk.
type UploadController struct {
	disk storage.Disk
}

func NewUploadController(d storage.Disk) *UploadController {
	return &UploadController{disk: d}
}

// Store accepts a multipart "image" field and answers {path, url}. The type
// is sniffed from the content, not taken from the client.
func (uc *UploadController) Store(c *ctx.Context) {
	c.R.Body = http.MaxBytesReader(c.W, c.R.Body, maxImageBytes+1<<10)
	file, _, err := c.R.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Error(http.StatusRequestEntityTooLarge, "Image must be 5MB or smaller")
			return
		}
		c.ValidationError(map[string]string{"image": "The image field is required."})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		c.Error(http.StatusBadRequest, "Could not read upload")
		return
	}
	if len(data) > maxImageBytes {
		c.Error(http.StatusRequestEntityTooLarge, "Image must be 5MB or smaller")
		return
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExt[contentType]
	if !ok {
		c.ValidationError(map[string]string{"image": "The image must be a JPEG, PNG, GIF or WebP file."})
		return
	}

	key := path.Join("products", uuid.NewString()+ext)
	if err := uc.disk.Put(c.Context(), key, bytes.NewReader(data), contentType); err != nil {
		serverError(c, "storing upload", err)
		return
	}
	logger.WithCtx(c.Context()).Info("image uploaded", "path", key, "bytes", len(data))
	c.Created(map[string]string{"path": key, "url": uc.disk.URL(key)})
}
