package routes

import (
	"net/http"

	"github.com/furnifit/furnifit-server/handlers"
	middleware "github.com/furnifit/furnifit-server/middlewares"
	"github.com/furnifit/furnifit-server/utils"
)

func UploadRoutes(mux *http.ServeMux, uh *handlers.UploadHandler, sessions *utils.SessionStore) {
	authMw := &middleware.Auth{Sessions: sessions}

	mux.Handle("POST /api/generate", authMw.AuthMiddleware(http.HandlerFunc(uh.Generate)))
	mux.Handle("GET /api/history", authMw.AuthMiddleware(http.HandlerFunc(uh.GetHistory)))
}
