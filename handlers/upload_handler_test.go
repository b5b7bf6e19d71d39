package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/furnifit/furnifit-server/models"
	"github.com/furnifit/furnifit-server/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/furnifit/furnifit-server/middlewares"
)

type uploadTestEnv struct {
	handler *UploadHandler
	redis   *redis.Client
	session *models.Session
}

func newUploadTestEnv(t *testing.T, generationEndpoint string) *uploadTestEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return &uploadTestEnv{
		handler: &UploadHandler{
			Redis:              client,
			Sessions:           utils.NewSessionStore(client),
			GenerationEndpoint: generationEndpoint,
			HTTPClient:         &http.Client{Timeout: 5 * time.Second},
		},
		redis: client,
		session: &models.Session{
			ID:          "sess-1",
			UserID:      "42",
			DisplayName: "dana",
			Email:       "dana@example.com",
		},
	}
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// generateRequest builds a multipart submit carrying the file plus the
// room, style, and aspect ratio fields.
func (env *uploadTestEnv) generateRequest(t *testing.T, fileBytes []byte, contentType string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="room.png"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(fileBytes)
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/generate", &body)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	ctx := context.WithValue(r.Context(), middleware.SessionContextKey, env.session)
	return r.WithContext(ctx)
}

func decodeGenerate(t *testing.T, w *httptest.ResponseRecorder) models.GenerateResponse {
	t.Helper()
	var envelope struct {
		Data models.GenerateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestGenerate_Success(t *testing.T) {
	var received models.UploadRequest
	generation := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("x-output-url", "http://cdn.example.com/a.jpg")
		w.WriteHeader(http.StatusOK)
	}))
	defer generation.Close()

	env := newUploadTestEnv(t, generation.URL)

	w := httptest.NewRecorder()
	env.handler.Generate(w, env.generateRequest(t, smallPNG(t), "image/png", map[string]string{
		"roomType":    "living",
		"style":       "coastal",
		"aspectRatio": "16:9",
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeGenerate(t, w)
	assert.Equal(t, "http://cdn.example.com/a.jpg", resp.OutputLocation)
	assert.Equal(t, "living", resp.RoomType)
	assert.Equal(t, "coastal", resp.Style)
	assert.Equal(t, "16:9", resp.AspectRatio)

	// The endpoint saw the prepared submission, not the raw upload.
	assert.Equal(t, "42", received.UserID)
	assert.Equal(t, "room.png", received.Filename)
	assert.Contains(t, received.Prompt, "coastal")
	assert.NotEmpty(t, received.ImageBase64)

	// One history entry, scoped to the submitting user, output persisted.
	raws, err := env.redis.LRange(context.Background(), historyListKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, raws, 1)

	var entry models.HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(raws[0]), &entry))
	assert.Equal(t, "42", entry.UserID)
	assert.Equal(t, "http://cdn.example.com/a.jpg", entry.OutputLocation)
	assert.True(t, strings.HasPrefix(entry.OriginalPreview, "data:image/jpeg;base64,"), "no S3 configured, preview falls back to a data URI")
}

func TestGenerate_EndpointFailureStatus(t *testing.T) {
	generation := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer generation.Close()

	env := newUploadTestEnv(t, generation.URL)

	w := httptest.NewRecorder()
	env.handler.Generate(w, env.generateRequest(t, smallPNG(t), "image/png", map[string]string{
		"style": "coastal",
	}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Generation endpoint error: 503")

	// A failed generation leaves no history behind.
	raws, err := env.redis.LRange(context.Background(), historyListKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestGenerate_NoOutputInResponse(t *testing.T) {
	generation := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"done":true,"queue":0}`))
	}))
	defer generation.Close()

	env := newUploadTestEnv(t, generation.URL)

	w := httptest.NewRecorder()
	env.handler.Generate(w, env.generateRequest(t, smallPNG(t), "image/png", map[string]string{
		"style": "coastal",
	}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "No output URL found in generation response.")
}

func TestGenerate_StyleGate(t *testing.T) {
	env := newUploadTestEnv(t, "http://unused.invalid")

	tests := []struct {
		name    string
		fields  map[string]string
		message string
	}{
		{"missing style", map[string]string{"roomType": "living"}, "Choose a style to submit"},
		{"style not in room whitelist", map[string]string{"roomType": "kitchen", "style": "coastal"}, "not available for room type"},
		{"bad aspect ratio", map[string]string{"style": "coastal", "aspectRatio": "3:2"}, "Unsupported aspect ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.handler.Generate(w, env.generateRequest(t, smallPNG(t), "image/png", tt.fields))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
		})
	}
}

func TestGenerate_RejectsUnsupportedFile(t *testing.T) {
	env := newUploadTestEnv(t, "http://unused.invalid")

	w := httptest.NewRecorder()
	env.handler.Generate(w, env.generateRequest(t, []byte("GIF89a"), "image/gif", map[string]string{
		"style": "coastal",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please upload a valid image file (JPEG, PNG, or WebP)")
}

func TestGenerate_RejectsConcurrentSubmission(t *testing.T) {
	release := make(chan struct{})
	generation := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("x-output-url", "http://cdn.example.com/a.jpg")
	}))
	defer generation.Close()

	env := newUploadTestEnv(t, generation.URL)

	var wg sync.WaitGroup
	wg.Add(1)
	first := httptest.NewRecorder()
	go func() {
		defer wg.Done()
		env.handler.Generate(first, env.generateRequest(t, smallPNG(t), "image/png", map[string]string{
			"style": "coastal",
		}))
	}()

	// Wait until the first submission is holding the in-flight slot.
	require.Eventually(t, func() bool {
		_, held := env.handler.inflight.Load("42")
		return held
	}, 2*time.Second, 10*time.Millisecond)

	second := httptest.NewRecorder()
	env.handler.Generate(second, env.generateRequest(t, smallPNG(t), "image/png", map[string]string{
		"style": "coastal",
	}))
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "A generation is already in progress")

	close(release)
	wg.Wait()
	assert.Equal(t, http.StatusOK, first.Code)

	// The slot is released once the submission finishes.
	third := httptest.NewRecorder()
	env.handler.Generate(third, env.generateRequest(t, smallPNG(t), "image/png", map[string]string{
		"style": "coastal",
	}))
	assert.Equal(t, http.StatusOK, third.Code)
}

func TestGetHistory_ScopesAndSorts(t *testing.T) {
	env := newUploadTestEnv(t, "http://unused.invalid")
	ctx := context.Background()

	entries := []models.HistoryEntry{
		{ID: "old", UserID: "42", OutputLocation: "http://cdn/old.jpg", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "other-user", UserID: "99", OutputLocation: "http://cdn/other.jpg", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "legacy", OutputLocation: "http://cdn/legacy.jpg", CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "new", UserID: "42", OutputLocation: "http://cdn/new.jpg", CreatedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, entry := range entries {
		require.NoError(t, env.handler.appendHistoryEntry(ctx, entry))
	}
	// Corrupt entries are skipped, not fatal.
	require.NoError(t, env.redis.RPush(ctx, historyListKey, "{not json").Err())

	r := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	r = r.WithContext(context.WithValue(r.Context(), middleware.SessionContextKey, env.session))
	w := httptest.NewRecorder()
	env.handler.GetHistory(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.HistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))

	ids := make([]string, 0, len(envelope.Data))
	for _, entry := range envelope.Data {
		ids = append(ids, entry.ID)
	}
	assert.Equal(t, []string{"new", "legacy", "old"}, ids, "newest first, other users filtered, legacy unscoped entries visible")
}

func TestGenerate_RequiresSession(t *testing.T) {
	env := newUploadTestEnv(t, "http://unused.invalid")

	w := httptest.NewRecorder()
	env.handler.Generate(w, httptest.NewRequest(http.MethodPost, "/api/generate", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
