package server

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/septivank/meter-reading-uploads/internal/metrics"
	"go.uber.org/zap"
)

// SetupRoutes wires the API handlers behind CORS, recovery and request logging.
// m may be nil, in which case /metrics is not served.
func SetupRoutes(h *Handlers, m *metrics.Metrics, allowedOrigins []string, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/meterreadings/meter-reading-uploads", h.UploadMeterReadings)
	mux.HandleFunc("GET /api/meterreadings", h.ListReadings)
	mux.HandleFunc("GET /api/accounts", h.ListAccounts)
	mux.HandleFunc("GET /healthz", h.Health)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return LoggingMiddleware(logger, corsHandler.Handler(RecoverMiddleware(logger, mux)))
}
