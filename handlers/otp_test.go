package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/furnifit/furnifit-server/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

func newTestOtpManager(t *testing.T) (*OtpManager, chan models.OtpWebhookBody) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	delivered := make(chan models.OtpWebhookBody, 8)
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body models.OtpWebhookBody
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			delivered <- body
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(webhook.Close)

	m := NewOtpManager(client, webhook.URL, "/otp")
	return m, delivered
}

func waitForDelivery(t *testing.T, ch chan models.OtpWebhookBody) models.OtpWebhookBody {
	t.Helper()
	select {
	case body := <-ch:
		return body
	case <-time.After(2 * time.Second):
		t.Fatal("otp webhook was never called")
		return models.OtpWebhookBody{}
	}
}

func TestIssue_GeneratesSixDigitCode(t *testing.T) {
	m, delivered := newTestOtpManager(t)

	code, err := m.Issue(context.Background(), "a@example.com", false)
	require.NoError(t, err)
	assert.Regexp(t, sixDigits, code)

	body := waitForDelivery(t, delivered)
	assert.Equal(t, "a@example.com", body.Email)
	assert.Equal(t, code, body.Code)
	assert.False(t, body.Resend)
}

func TestVerify_SucceedsExactlyOnce(t *testing.T) {
	m, _ := newTestOtpManager(t)
	ctx := context.Background()

	code, err := m.Issue(ctx, "a@example.com", false)
	require.NoError(t, err)

	assert.True(t, m.Verify(ctx, "a@example.com", code))
	assert.False(t, m.Verify(ctx, "a@example.com", code), "code must be single-use")
}

func TestVerify_WrongCode(t *testing.T) {
	m, _ := newTestOtpManager(t)
	ctx := context.Background()

	code, err := m.Issue(ctx, "a@example.com", false)
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	assert.False(t, m.Verify(ctx, "a@example.com", wrong))
	// The record is still live after a miss.
	assert.True(t, m.Verify(ctx, "a@example.com", code))
}

func TestVerify_NoRecord(t *testing.T) {
	m, _ := newTestOtpManager(t)

	assert.False(t, m.Verify(context.Background(), "nobody@example.com", "123456"))
}

func TestVerify_Expired(t *testing.T) {
	m, _ := newTestOtpManager(t)
	ctx := context.Background()

	code, err := m.Issue(ctx, "a@example.com", false)
	require.NoError(t, err)

	m.Now = func() time.Time { return time.Now().Add(10*time.Minute + time.Second) }

	assert.False(t, m.Verify(ctx, "a@example.com", code), "expired code must fail even when it matches")
}

func TestIssue_ReplacesPriorRecord(t *testing.T) {
	m, _ := newTestOtpManager(t)
	ctx := context.Background()

	first, err := m.Issue(ctx, "a@example.com", false)
	require.NoError(t, err)

	second, err := m.Resend(ctx, "a@example.com")
	require.NoError(t, err)

	if first != second {
		assert.False(t, m.Verify(ctx, "a@example.com", first), "replaced code must stop working")
	}
	assert.True(t, m.Verify(ctx, "a@example.com", second))
}

func TestResend_SetsResendFlag(t *testing.T) {
	m, delivered := newTestOtpManager(t)

	_, err := m.Resend(context.Background(), "a@example.com")
	require.NoError(t, err)

	body := waitForDelivery(t, delivered)
	assert.True(t, body.Resend)
}

func TestIssue_SurvivesDeliveryFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	// Point the webhook at a closed server.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	m := NewOtpManager(client, dead.URL, "/otp")
	ctx := context.Background()

	code, err := m.Issue(ctx, "a@example.com", false)
	require.NoError(t, err, "delivery failure must not prevent issuance")

	assert.True(t, m.Verify(ctx, "a@example.com", code))
}
