package handlers

import (
	"net/http"

	"github.com/vedran77/onionparts/internal/transport/http/middleware"
)

// Router carries everything the HTTP API is built from.
type Router struct {
	Auth      *AuthHandler
	Products  *ProductHandler
	Rooms     *RoomHandler
	Messages  *MessageHandler
	Storage   *StorageHandler
	KeepAlive *KeepAliveHandler

	// Optional extras mounted at /ws and /metrics.
	WS      http.Handler
	Metrics http.Handler

	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Handler registers every route and wraps the mux with CORS.
func (rt *Router) Handler() http.Handler {
	auth := middleware.Auth(rt.JWTSecret)
	limited := middleware.RateLimit(rt.RateLimitRPS, rt.RateLimitBurst)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }
	throttled := func(h http.HandlerFunc) http.Handler { return auth(limited(h)) }

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("GET /api/keep-alive", rt.KeepAlive.Ping)
	mux.HandleFunc("POST /api/v1/auth/register", rt.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", rt.Auth.Login)

	// Catalogue
	mux.HandleFunc("GET /api/v1/products", rt.Products.List)
	mux.HandleFunc("GET /api/v1/products/{id}", rt.Products.Get)
	mux.HandleFunc("GET /api/v1/brands", rt.Products.Brands)
	mux.HandleFunc("GET /api/v1/categories", rt.Products.Categories)
	mux.Handle("POST /api/v1/products", protected(rt.Products.Create))

	// Profile
	mux.Handle("GET /api/v1/me", protected(rt.Auth.Me))
	mux.Handle("POST /api/v1/admin/claim", throttled(rt.Auth.ClaimAdmin))

	// Conversations
	mux.Handle("POST /api/v1/products/{id}/rooms", protected(rt.Rooms.Open))
	mux.Handle("GET /api/v1/rooms", protected(rt.Rooms.List))
	mux.Handle("GET /api/v1/rooms/{id}", protected(rt.Rooms.View))
	mux.Handle("POST /api/v1/rooms/{id}/leave", protected(rt.Rooms.Leave))
	mux.Handle("GET /api/v1/rooms/{id}/messages", protected(rt.Messages.List))
	mux.Handle("POST /api/v1/rooms/{id}/messages", throttled(rt.Messages.Send))

	// Object storage
	mux.Handle("PUT /storage/v1/object/{bucket}/{path...}", throttled(rt.Storage.Upload))
	mux.HandleFunc("GET /storage/v1/object/public/{bucket}/{path...}", rt.Storage.Download)

	if rt.WS != nil {
		mux.Handle("GET /ws", rt.WS)
	}
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	return middleware.CORS(mux)
}
