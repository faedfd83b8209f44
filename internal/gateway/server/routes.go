package server

import (
	"net/http"

	"crewsheet/internal/gateway/handler"
	"crewsheet/internal/gateway/middleware"
)

// NewMux routes the session API. allowedOrigins feeds the CORS policy.
func NewMux(sessions *handler.SessionHandler, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/tools", sessions.HandleTools)

	mux.HandleFunc("POST /v1/sessions", sessions.HandleCreate)
	mux.HandleFunc("GET /v1/sessions/{id}", sessions.HandleGet)
	mux.HandleFunc("DELETE /v1/sessions/{id}", sessions.HandleDelete)
	mux.HandleFunc("POST /v1/sessions/{id}/turns", sessions.HandleTurn)
	mux.HandleFunc("POST /v1/sessions/{id}/calls", sessions.HandleCalls)
	mux.HandleFunc("POST /v1/sessions/{id}/confirmation", sessions.HandleRequestConfirmation)
	mux.HandleFunc("POST /v1/sessions/{id}/confirm", sessions.HandleConfirm)
	mux.HandleFunc("GET /v1/sessions/{id}/exports/{kind}", sessions.HandleExport)

	// Event transport
	mux.HandleFunc("GET /v1/sessions/{id}/events", sessions.HandleEvents)
	mux.HandleFunc("GET /v1/sessions/{id}/events/ws", sessions.HandleEventsWS)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return middleware.CORS(allowedOrigins)(mux)
}
