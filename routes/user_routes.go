package routes

import (
	"net/http"

	"github.com/furnifit/furnifit-server/handlers"
	middleware "github.com/furnifit/furnifit-server/middlewares"
	"github.com/furnifit/furnifit-server/utils"
)

func RegisterUserRoutes(mux *http.ServeMux, uh *handlers.UserHandler, sessions *utils.SessionStore) {
	authMw := &middleware.Auth{Sessions: sessions}

	mux.Handle("GET /api/users/me", authMw.AuthMiddleware(http.HandlerFunc(uh.GetUserInfo)))

	mux.HandleFunc("POST /api/users/register", uh.Register)
	mux.HandleFunc("POST /api/users/login", uh.Login)
	mux.HandleFunc("GET /api/users/logout", uh.Logout)
	mux.HandleFunc("POST /api/users/verify-otp", uh.VerifyOtp)
	mux.HandleFunc("POST /api/users/resend-otp", uh.ResendOtp)
}
