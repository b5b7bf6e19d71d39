package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/furnifit/furnifit-server/models"
	"github.com/furnifit/furnifit-server/utils"
	"github.com/redis/go-redis/v9"
)

const (
	otpKeyPrefix = "otp:"
	otpTTL       = 10 * time.Minute
)

// OtpManager issues, verifies, and invalidates one-time passcodes, one
// live record per email. Codes are stored with an explicit expiry instant;
// the matching Redis TTL only garbage-collects stale records.
type OtpManager struct {
	Redis       *redis.Client
	WebhookBase string
	WebhookPath string
	HTTPClient  *http.Client

	// Overridable in tests.
	Now func() time.Time
}

func NewOtpManager(redisClient *redis.Client, webhookBase, webhookPath string) *OtpManager {
	return &OtpManager{
		Redis:       redisClient,
		WebhookBase: webhookBase,
		WebhookPath: webhookPath,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		Now:         time.Now,
	}
}

func otpKey(email string) string {
	return otpKeyPrefix + email
}

// Issue generates a fresh 6-digit code for the email, replacing any prior
// record, and dispatches it through the delivery webhook. Dispatch is fire
// and forget: a delivery failure never blocks issuance.
func (m *OtpManager) Issue(ctx context.Context, email string, resend bool) (string, error) {
	code, err := utils.GenerateOtpCode()
	if err != nil {
		return "", err
	}

	record := models.OtpRecord{
		Code:      code,
		ExpiresAt: m.Now().Add(otpTTL),
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal otp record: %w", err)
	}

	if err := m.Redis.Set(ctx, otpKey(email), raw, otpTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store otp record: %w", err)
	}

	go m.dispatch(email, code, resend)

	return code, nil
}

// Verify checks the submitted code against the live record. A hit consumes
// the record, so the same code can never verify twice.
func (m *OtpManager) Verify(ctx context.Context, email, submitted string) bool {
	raw, err := m.Redis.Get(ctx, otpKey(email)).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("Failed to load otp record for %s: %v", email, err)
		return false
	}

	var record models.OtpRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		log.Printf("Corrupt otp record for %s: %v", email, err)
		return false
	}

	if submitted != record.Code || m.Now().After(record.ExpiresAt) {
		return false
	}

	if err := m.Redis.Del(ctx, otpKey(email)).Err(); err != nil {
		log.Printf("Failed to consume otp record for %s: %v", email, err)
	}

	return true
}

// Resend reissues the code with the resend flag set on the dispatch body.
// State-wise it is Issue: exactly one live record afterward.
func (m *OtpManager) Resend(ctx context.Context, email string) (string, error) {
	return m.Issue(ctx, email, true)
}

func (m *OtpManager) dispatch(email, code string, resend bool) {
	body, err := json.Marshal(models.OtpWebhookBody{
		Email:  email,
		Code:   code,
		Resend: resend,
	})
	if err != nil {
		log.Printf("Failed to marshal otp webhook body: %v", err)
		return
	}

	resp, err := m.HTTPClient.Post(m.WebhookBase+m.WebhookPath, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("OTP webhook error for %s: %v", email, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("OTP webhook returned %d for %s", resp.StatusCode, email)
	}
}
