package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/config"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/media"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMediaMaxUploadSizeMB = 10
	MasterMaxSize               = 2048
	WebPQuality                 = 75
	MaxMediaPerPost             = 10
)

// UploadMediaInput is one file attached to a new post.
type UploadMediaInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
	Type        models.MediaType
	Caption     string
}

// MediaService validates uploads and writes them to the configured store.
// Images are normalised to WebP with the longest edge bounded; videos are
// stored as uploaded.
type MediaService struct {
	store              media.Store
	maxUploadSizeBytes int64
}

func NewMediaService(store media.Store, cfg *config.Config) *MediaService {
	maxUploadSizeMB := DefaultMediaMaxUploadSizeMB
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
	}
	return &MediaService{
		store:              store,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Save stores the upload and returns an unsaved Media row pointing at it.
func (s *MediaService) Save(ctx context.Context, in UploadMediaInput) (*models.Media, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}
	if in.Type == "" {
		in.Type = models.MediaTypeImage
	}
	if !in.Type.Valid() {
		return nil, models.NewValidationError("media_type must be image or video")
	}

	var (
		data        []byte
		contentType string
		ext         string
		err         error
	)
	switch in.Type {
	case models.MediaTypeImage:
		data, err = normalizeImage(in.Content, in.ContentType)
		if err != nil {
			return nil, err
		}
		contentType, ext = "image/webp", ".webp"
	case models.MediaTypeVideo:
		contentType, ext, err = detectVideo(in.Content, in.Filename)
		if err != nil {
			return nil, err
		}
		data = in.Content
	}

	key := fmt.Sprintf("posts/%d/%s%s", in.UserID, uuid.NewString(), ext)
	url, err := s.store.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	return &models.Media{File: url, Type: in.Type, Caption: strings.TrimSpace(in.Caption)}, nil
}

func normalizeImage(content []byte, provided string) ([]byte, error) {
	detectedType := http.DetectContentType(content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if p := normalizeContentType(provided); strings.HasPrefix(p, "image/") && !isMatchingContentType(p, decodedFormatToMime(format)) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	encoded, err := encodeWebP(resizeToFit(decoded, MasterMaxSize, MasterMaxSize), WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return encoded, nil
}

var videoExtensions = map[string]string{
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
	"video/x-msvideo": ".avi",
	"video/avi":       ".avi",
}

func detectVideo(content []byte, filename string) (string, string, error) {
	detected := normalizeContentType(http.DetectContentType(content))
	if ext, ok := videoExtensions[detected]; ok {
		return detected, ext, nil
	}
	// DetectContentType does not sniff QuickTime containers.
	if byExt := normalizeContentType(mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))); byExt == "video/quicktime" && detected == "application/octet-stream" {
		return byExt, ".mov", nil
	}
	return "", "", models.NewValidationError("Invalid video type")
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
