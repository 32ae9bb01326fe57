package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/config"
	"github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory media.Store.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memoryStore) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return "/media/" + key, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) only(t *testing.T) (string, []byte, string) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.objects, 1)
	for k, v := range s.objects {
		return k, v, s.types[k]
	}
	return "", nil, ""
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func mp4Bytes() []byte {
	header := []byte{0x00, 0x00, 0x00, 0x18}
	header = append(header, []byte("ftypisom")...)
	header = append(header, 0x00, 0x00, 0x02, 0x00)
	header = append(header, []byte("isommp41")...)
	return append(header, make([]byte, 64)...)
}

func TestMediaService_SaveImageNormalizesToWebP(t *testing.T) {
	store := newMemoryStore()
	svc := NewMediaService(store, &config.Config{ImageMaxUploadSizeMB: 10})

	m, err := svc.Save(context.Background(), UploadMediaInput{
		UserID:      7,
		Filename:    "big.png",
		ContentType: "image/png",
		Content:     pngBytes(t, 3000, 1500),
		Caption:     "  sunset ",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeImage, m.Type)
	assert.Equal(t, "sunset", m.Caption)

	key, data, contentType := store.only(t)
	assert.True(t, strings.HasPrefix(key, "posts/7/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))
	assert.Equal(t, "/media/"+key, m.File)
	assert.Equal(t, "image/webp", contentType)

	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, MasterMaxSize, cfg.Width)
	assert.Equal(t, MasterMaxSize/2, cfg.Height)
}

func TestMediaService_SaveVideoStoredAsIs(t *testing.T) {
	store := newMemoryStore()
	svc := NewMediaService(store, nil)
	content := mp4Bytes()

	m, err := svc.Save(context.Background(), UploadMediaInput{
		UserID: 3, Filename: "clip.mp4", Content: content, Type: models.MediaTypeVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeVideo, m.Type)

	key, data, contentType := store.only(t)
	assert.True(t, strings.HasSuffix(key, ".mp4"))
	assert.Equal(t, "video/mp4", contentType)
	assert.Equal(t, content, data)
}

func TestMediaService_SaveRejects(t *testing.T) {
	t.Parallel()
	small := pngBytes(t, 4, 4)

	tests := []struct {
		name string
		in   UploadMediaInput
	}{
		{"no user", UploadMediaInput{Content: small}},
		{"empty", UploadMediaInput{UserID: 1}},
		{"too large", UploadMediaInput{UserID: 1, Content: make([]byte, 2*1024*1024)}},
		{"bad type", UploadMediaInput{UserID: 1, Content: small, Type: "audio"}},
		{"not an image", UploadMediaInput{UserID: 1, Content: []byte("plain text, not pixels")}},
		{"content type mismatch", UploadMediaInput{UserID: 1, Content: small, ContentType: "image/gif"}},
		{"image sent as video", UploadMediaInput{UserID: 1, Content: small, Type: models.MediaTypeVideo}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewMediaService(newMemoryStore(), &config.Config{ImageMaxUploadSizeMB: 1})
			_, err := svc.Save(context.Background(), tt.in)
			assertValidationError(t, err)
		})
	}
}

func TestMediaService_StoreFailureIsInternal(t *testing.T) {
	store := newMemoryStore()
	store.putErr = errors.New("disk full")
	svc := NewMediaService(store, nil)

	_, err := svc.Save(context.Background(), UploadMediaInput{UserID: 1, Content: pngBytes(t, 8, 8)})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeInternal))
}
