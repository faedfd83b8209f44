// Package session keeps the live conversations of one process. Each session
// owns its own orchestrator; nothing mutable is shared between them.
package session

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"crewsheet/internal/company"
	"crewsheet/internal/config"
	"crewsheet/internal/dates"
	"crewsheet/internal/exportsink"
	"crewsheet/internal/orchestrator"
)

var ErrNotFound = errors.New("session: not found")

// Factory builds orchestrators from the shared startup settings. The company
// config is loaded once and is read-only afterwards.
type Factory struct {
	Session config.Session
	Company *company.Config
	Dates   dates.Resolver
	Sink    exportsink.Sink
	Parser  orchestrator.Parser
	Logger  *log.Logger
}

// NewFactory loads the company config named by cfg. A malformed config is a
// ConfigError and stops startup.
func NewFactory(cfg config.Session, sink exportsink.Sink, parser orchestrator.Parser, logger *log.Logger) (*Factory, error) {
	if logger == nil {
		logger = log.Default()
	}
	f := &Factory{Session: cfg, Sink: sink, Parser: parser, Logger: logger}
	if path := strings.TrimSpace(cfg.ConfigPath); path != "" {
		c, err := company.Load(path)
		if err != nil {
			return nil, fmt.Errorf("session: company config: %w", err)
		}
		f.Company = c
		logger.Printf("session: company config %s: %d employees, %d jobsites", path, len(c.Employees), len(c.Jobsites))
	}
	f.Dates = Resolver(cfg, logger)
	return f, nil
}

// Resolver builds the date resolver for cfg. An unknown timezone falls back
// to UTC.
func Resolver(cfg config.Session, logger *log.Logger) dates.Resolver {
	r := dates.Resolver{BaseDate: cfg.BaseDate}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			if logger != nil {
				logger.Printf("session: unknown timezone %q, using UTC", tz)
			}
		} else {
			r.Location = loc
		}
	}
	return r
}

// New builds the orchestrator for one session.
func (f *Factory) New(id string) *orchestrator.Orchestrator {
	fullDay := f.Session.FullDayHours
	if !fullDay.IsPositive() {
		fullDay = decimal.NewFromInt(8)
	}
	return orchestrator.New(orchestrator.Options{
		SessionID:           id,
		Company:             f.Company,
		Dates:               f.Dates,
		FullDay:             fullDay,
		RequireConfirmation: f.Session.RequireConfirmation,
		Sink:                f.Sink,
		Parser:              f.Parser,
		Logger:              f.Logger,
	})
}

// Registry holds live sessions. Sessions idle longer than the TTL, or pushed
// out by the size bound, are closed.
type Registry struct {
	factory *Factory
	logger  *log.Logger
	cache   *expirable.LRU[string, *orchestrator.Orchestrator]
}

func NewRegistry(f *Factory, cfg config.RegistryConfig) *Registry {
	size := cfg.MaxSessions
	if size <= 0 {
		size = config.DefaultMaxSessions
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = config.DefaultIdleTTL
	}
	logger := f.Logger
	if logger == nil {
		logger = log.Default()
	}
	r := &Registry{factory: f, logger: logger}
	r.cache = expirable.NewLRU[string, *orchestrator.Orchestrator](size, func(id string, o *orchestrator.Orchestrator) {
		o.Close()
		r.logger.Printf("session: closed %s", id)
	}, ttl)
	return r
}

// Create starts a new session with a fresh id.
func (r *Registry) Create() *orchestrator.Orchestrator {
	id := uuid.NewString()
	o := r.factory.New(id)
	r.cache.Add(id, o)
	r.logger.Printf("session: created %s", id)
	return o
}

// Get returns the session and refreshes its idle timer.
func (r *Registry) Get(id string) (*orchestrator.Orchestrator, error) {
	o, ok := r.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.cache.Add(id, o)
	return o, nil
}

// Delete closes and forgets a session.
func (r *Registry) Delete(id string) error {
	if !r.cache.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (r *Registry) Len() int { return r.cache.Len() }

// IDs lists live sessions, oldest first.
func (r *Registry) IDs() []string { return r.cache.Keys() }

// Close ends every session.
func (r *Registry) Close() { r.cache.Purge() }
