package routes

import (
	"net/http"

	"github.com/furnifit/furnifit-server/handlers"
	middleware "github.com/furnifit/furnifit-server/middlewares"
	"github.com/furnifit/furnifit-server/utils"
)

func TokenRoutes(mux *http.ServeMux, th *handlers.TokenHandler, sessions *utils.SessionStore) {
	authMw := &middleware.Auth{Sessions: sessions}

	mux.Handle("GET /api/tokens/refresh", authMw.AuthMiddleware(http.HandlerFunc(th.Refresh)))
	mux.Handle("POST /api/tokens/reconcile", authMw.AuthMiddleware(http.HandlerFunc(th.Reconcile)))
	mux.Handle("POST /api/tokens/checkout", authMw.AuthMiddleware(http.HandlerFunc(th.CreateCheckoutSession)))
}
