package models

import "time"

// User mirrors one row of the remote record store, keyed by gmail.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Gmail    string `db:"gmail" json:"gmail"`
	Password string `db:"password" json:"-"`
	Tokens   int    `db:"tokens" json:"tokens"`
}

type RegisterForm struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegistrationWebhookBody is the fixed payload of the external
// registration endpoint.
type RegistrationWebhookBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	CreatedAt string `json:"createdAt"`
}

// Session is the authenticated identity. It lives in Redis and its Email
// scopes every other record the service touches.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	Email        string    `json:"email"`
	TokenBalance *int      `json:"tokenBalance,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
