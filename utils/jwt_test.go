package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	key := []byte("test-secret")

	tokenString, err := CreateSessionToken("sess-abc", key)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := ParseSessionToken(tokenString, key)
	require.NoError(t, err)
	assert.Equal(t, "sess-abc", claims.SessionID)
}

func TestParseSessionToken_WrongKey(t *testing.T) {
	tokenString, err := CreateSessionToken("sess-abc", []byte("right-key"))
	require.NoError(t, err)

	_, err = ParseSessionToken(tokenString, []byte("wrong-key"))
	assert.Error(t, err)
}

func TestParseSessionToken_Garbage(t *testing.T) {
	_, err := ParseSessionToken("not.a.jwt", []byte("key"))
	assert.Error(t, err)
}

func TestSessionCookie_SetAndRead(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, "token-value")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session_token", cookies[0].Name)
	assert.Equal(t, "token-value", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])

	value, err := SessionCookie(r)
	require.NoError(t, err)
	assert.Equal(t, "token-value", value)
}

func TestClearSessionCookie(t *testing.T) {
	w := httptest.NewRecorder()
	ClearSessionCookie(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].Expires.Before(time.Now()), "cleared cookie must already be expired")
}

func TestSessionCookie_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := SessionCookie(r)
	assert.ErrorIs(t, err, http.ErrNoCookie)
}
