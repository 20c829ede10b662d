package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter returns the base router. API handlers add their own timeouts so
// long-lived real-time connections are not cut off.
func NewRouter(mw ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(mw...)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":     "kitchen order API",
			"dishes":      "/api/user/dishes",
			"merchant":    "/api/merchant/orders",
			"merchant_ws": "/ws/merchant",
			"metrics":     "/metrics",
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func statusFor(k orders.Kind) int {
	switch k {
	case orders.KindValidation, orders.KindInvalidItem, orders.KindInvalidTransition:
		return http.StatusBadRequest
	case orders.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error", "reason"}. Causes of storage failures
// go to the log only.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var e *orders.Error
	if !errors.As(err, &e) {
		e = &orders.Error{Kind: orders.KindStorage, Err: err}
	}
	msg := e.Message
	if e.Kind == orders.KindStorage || msg == "" {
		logger.Error("request failed", "error", err)
		msg = "internal server error"
	}
	writeJSON(w, statusFor(e.Kind), errorBody{Error: msg, Reason: string(e.Kind)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Reason: string(orders.KindValidation)})
}
