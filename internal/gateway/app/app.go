package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"crewsheet/internal/config"
	"crewsheet/internal/exportsink"
	"crewsheet/internal/gateway/handler"
	"crewsheet/internal/gateway/server"
	"crewsheet/internal/orchestrator"
	"crewsheet/internal/session"
)

type App struct {
	server   *server.Server
	sessions *session.Registry
	sink     exportsink.Sink
}

// New wires the export sink, the session registry and the HTTP server. A
// nil parser leaves /turns unavailable; /calls still works.
func New(cfg *config.Config, parser orchestrator.Parser, logger *log.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is nil")
	}
	if logger == nil {
		logger = log.Default()
	}

	// Dependencies
	sink, err := exportsink.Open(cfg.Session.SavePath, cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("failed to open export sink: %w", err)
	}
	factory, err := session.NewFactory(cfg.Session, sink, parser, logger)
	if err != nil {
		_ = exportsink.Close(sink)
		return nil, err
	}
	sessions := session.NewRegistry(factory, cfg.Registry)

	// Routing & Server
	mux := server.NewMux(handler.NewSessionHandler(sessions, logger), cfg.AllowedOrigins)
	srv := server.New(cfg.Port, mux, logger)

	return &App{
		server:   srv,
		sessions: sessions,
		sink:     sink,
	}, nil
}

func (a *App) Sessions() *session.Registry { return a.sessions }

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.sessions.Close()
	return errors.Join(err, exportsink.Close(a.sink))
}
