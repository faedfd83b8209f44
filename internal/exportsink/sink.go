// Package exportsink persists rendered CSV exports outside the session.
// A failed write never affects the rendered document or the record store.
package exportsink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"crewsheet/internal/csvexport"
)

// Sink stores one rendered export and returns where it went.
type Sink interface {
	Write(ctx context.Context, sessionID string, doc csvexport.Document) (string, error)
}

// IOError reports a failed export write.
type IOError struct {
	Sink string
	Kind csvexport.Kind
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("exportsink: %s write of %s export failed: %v", e.Sink, e.Kind, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

var ErrNotFound = errors.New("exportsink: export not found")

// Multi writes to every sink in order and joins their failures. Locations of
// successful writes are returned joined with ", ".
type Multi []Sink

func (m Multi) Write(ctx context.Context, sessionID string, doc csvexport.Document) (string, error) {
	var (
		locs []string
		errs []error
	)
	for _, s := range m {
		if s == nil {
			continue
		}
		loc, err := s.Write(ctx, sessionID, doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if loc != "" {
			locs = append(locs, loc)
		}
	}
	return strings.Join(locs, ", "), errors.Join(errs...)
}

// Close releases sinks that hold connections.
func Close(s Sink) error {
	switch v := s.(type) {
	case Multi:
		var errs []error
		for _, inner := range v {
			errs = append(errs, Close(inner))
		}
		return errors.Join(errs...)
	case io.Closer:
		return v.Close()
	}
	return nil
}

func objectKey(sessionID string, kind csvexport.Kind) string {
	sessionID = strings.Trim(strings.TrimSpace(sessionID), "/")
	if sessionID == "" {
		sessionID = "default"
	}
	return sessionID + "/" + string(kind) + ".csv"
}
