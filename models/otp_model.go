package models

import "time"

// OtpRecord is the single live passcode for one email address. Issuing a
// new code replaces it; a successful verify consumes it.
type OtpRecord struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// OtpWebhookBody is the fixed payload of the external delivery endpoint.
type OtpWebhookBody struct {
	Email  string `json:"email"`
	Code   string `json:"code"`
	Resend bool   `json:"resend"`
}
