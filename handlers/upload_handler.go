package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/furnifit/furnifit-server/models"
	"github.com/furnifit/furnifit-server/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	middleware "github.com/furnifit/furnifit-server/middlewares"
)

const (
	uploadsListKey = "uploads"
	historyListKey = "history"

	maxGenerationResponseBytes = 10 << 20
)

// Pipeline states for one generation submission. A submission always moves
// forward; FAILED is terminal and retryable only by an explicit resubmit.
type pipelineState string

const (
	stateIdle          pipelineState = "IDLE"
	stateValidating    pipelineState = "VALIDATING"
	statePreviewing    pipelineState = "PREVIEWING"
	stateAwaitingStyle pipelineState = "AWAITING_STYLE_SELECTION"
	stateSubmitting    pipelineState = "SUBMITTING"
	stateResolving     pipelineState = "RESOLVING"
	stateSucceeded     pipelineState = "SUCCEEDED"
	stateFailed        pipelineState = "FAILED"
)

type UploadHandler struct {
	Redis              *redis.Client
	Sessions           *utils.SessionStore
	S3Uploader         s3manageriface.UploaderAPI
	S3Bucket           string
	GenerationEndpoint string
	HTTPClient         *http.Client

	// One submission in flight per user. The UI disables its submit
	// control while pending, but a second concurrent start is still a
	// caller error the pipeline rejects itself.
	inflight sync.Map
}

type submission struct {
	state pipelineState
}

func (s *submission) advance(next pipelineState) {
	s.state = next
}

// Generate runs one full submission: validate the file, decode the
// preview, gate on style selection, downscale, call the generation
// endpoint, resolve the output location, and persist a history entry.
func (h *UploadHandler) Generate(w http.ResponseWriter, r *http.Request) {
	session, ok := r.Context().Value(middleware.SessionContextKey).(*models.Session)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if _, loaded := h.inflight.LoadOrStore(session.UserID, struct{}{}); loaded {
		utils.RespondError(w, http.StatusConflict, "A generation is already in progress")
		return
	}
	defer h.inflight.Delete(session.UserID)

	sub := &submission{state: stateIdle}

	sub.advance(stateValidating)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Could not parse multipart form")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "File not provided")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")

	if err := validateImageFile(contentType, fileHeader.Size); err != nil {
		switch err {
		case ErrUnsupportedType:
			utils.RespondError(w, http.StatusBadRequest, "Please upload a valid image file (JPEG, PNG, or WebP)")
		case ErrFileTooLarge:
			utils.RespondError(w, http.StatusBadRequest, "File size must be less than 10MB")
		default:
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		utils.RespondInternal(w, err, "Error reading file")
		return
	}

	// Decode on a goroutine so the pending-upload bookkeeping below is
	// not serialized behind it.
	sub.advance(statePreviewing)

	type previewResult struct {
		img image.Image
		err error
	}
	previewCh := make(chan previewResult, 1)
	go func() {
		img, err := decodePreview(fileBytes)
		previewCh <- previewResult{img: img, err: err}
	}()

	roomType := r.FormValue("roomType")
	if roomType == "" {
		roomType = "living"
	}
	style := r.FormValue("style")
	aspectRatio := r.FormValue("aspectRatio")
	if aspectRatio == "" {
		aspectRatio = "original"
	}

	// Style gate: nothing leaves the machine until a style valid for the
	// room has been chosen.
	sub.advance(stateAwaitingStyle)

	if !allowedAspectRatios[aspectRatio] {
		utils.RespondError(w, http.StatusBadRequest, "Unsupported aspect ratio")
		return
	}
	if style == "" {
		utils.RespondError(w, http.StatusBadRequest, "Choose a style to submit")
		return
	}
	if !styleAllowedForRoom(roomType, style) {
		utils.RespondError(w, http.StatusBadRequest, fmt.Sprintf("Style %q is not available for room type %q", style, roomType))
		return
	}

	preview := <-previewCh
	if preview.err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Could not decode image")
		return
	}

	payload, width, height, err := downscaleImage(preview.img, maxOutboundDim, outboundJPEGQuality)
	if err != nil {
		utils.RespondInternal(w, err, "Could not prepare image for submission")
		return
	}
	log.Printf("Prepared %s as %dx%d JPEG (%d bytes)", fileHeader.Filename, width, height, len(payload))

	// One URI serves both sides: stripped for the wire, whole as the
	// inline preview fallback.
	previewURI := dataURI("image/jpeg", payload)

	request := models.UploadRequest{
		ID:          strconv.FormatInt(time.Now().UnixMilli(), 10),
		UserID:      session.UserID,
		Filename:    fileHeader.Filename,
		UploadedAt:  time.Now().UTC().Format(time.RFC3339),
		RoomType:    roomType,
		Style:       style,
		AspectRatio: aspectRatio,
		Prompt:      buildPrompt(roomType, style),
		FileSize:    fileHeader.Size,
		FileType:    contentType,
		ImageBase64: stripDataURIPrefix(previewURI),
	}

	if err := h.appendPendingUpload(r.Context(), request); err != nil {
		log.Printf("Failed to record pending upload: %v", err)
	}

	sub.advance(stateSubmitting)

	outputLocation, failStatus, failMsg := h.submit(r.Context(), sub, request)
	if failMsg != "" {
		sub.advance(stateFailed)
		utils.RespondError(w, failStatus, failMsg)
		return
	}

	originalPreview := h.storeOriginalPreview(r.Context(), session.UserID, request.ID, payload, previewURI)

	entry := models.HistoryEntry{
		ID:              uuid.NewString(),
		UserID:          session.UserID,
		OriginalPreview: originalPreview,
		OutputLocation:  outputLocation,
		RoomType:        roomType,
		Style:           style,
		AspectRatio:     aspectRatio,
		CreatedAt:       time.Now().UTC(),
	}

	if err := h.appendHistoryEntry(r.Context(), entry); err != nil {
		// The generation itself succeeded; history is best effort.
		log.Printf("Failed to persist history entry: %v", err)
	}

	sub.advance(stateSucceeded)

	utils.RespondSuccess(w, http.StatusOK, models.GenerateResponse{
		ID:             entry.ID,
		OutputLocation: outputLocation,
		RoomType:       roomType,
		Style:          style,
		AspectRatio:    aspectRatio,
	})
}

// submit posts the request to the generation endpoint and resolves the
// output location. It returns either a location or a user-facing failure
// message with its HTTP status.
func (h *UploadHandler) submit(ctx context.Context, sub *submission, request models.UploadRequest) (string, int, string) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", http.StatusInternalServerError, "Unable to build generation request"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.GenerationEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", http.StatusInternalServerError, "Unable to build generation request"
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient().Do(req)
	if err != nil {
		log.Printf("Generation endpoint error: %v", err)
		return "", http.StatusBadGateway, "Generation request failed. Please try again."
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", http.StatusBadGateway, fmt.Sprintf("Generation endpoint error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	sub.advance(stateResolving)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGenerationResponseBytes))
	if err != nil {
		log.Printf("Failed to read generation response: %v", err)
		return "", http.StatusBadGateway, "Generation request failed. Please try again."
	}

	location, found := resolveOutputLocation(resp, respBody)
	if !found {
		return "", http.StatusBadGateway, "No output URL found in generation response."
	}

	return location, 0, ""
}

// storeOriginalPreview puts the downscaled original into S3 so history
// entries reference a durable address. Without S3, or on upload failure,
// it falls back to the inline data URI.
func (h *UploadHandler) storeOriginalPreview(ctx context.Context, userID, requestID string, payload []byte, fallback string) string {
	if h.S3Uploader == nil || h.S3Bucket == "" {
		return fallback
	}

	key := fmt.Sprintf("previews/%s_%s.jpg", userID, requestID)

	result, err := h.S3Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(h.S3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		log.Printf("Failed to upload preview to S3: %v", err)
		return fallback
	}

	return result.Location
}

func (h *UploadHandler) appendPendingUpload(ctx context.Context, request models.UploadRequest) error {
	raw, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal upload request: %w", err)
	}
	return h.Redis.RPush(ctx, uploadsListKey, raw).Err()
}

func (h *UploadHandler) appendHistoryEntry(ctx context.Context, entry models.HistoryEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	return h.Redis.RPush(ctx, historyListKey, raw).Err()
}

// GetHistory returns the caller's entries newest-first. Entries without a
// userId predate scoping and show up for everyone.
func (h *UploadHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	session, ok := r.Context().Value(middleware.SessionContextKey).(*models.Session)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	raws, err := h.Redis.LRange(r.Context(), historyListKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		utils.RespondInternal(w, err, "Unable to load history")
		return
	}

	entries := make([]models.HistoryEntry, 0, len(raws))
	for _, raw := range raws {
		var entry models.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Printf("Skipping corrupt history entry: %v", err)
			continue
		}
		if entry.UserID != "" && entry.UserID != session.UserID {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	utils.RespondSuccess(w, http.StatusOK, entries)
}

func (h *UploadHandler) httpClient() *http.Client {
	if h.HTTPClient != nil {
		return h.HTTPClient
	}
	return &http.Client{Timeout: 120 * time.Second}
}
