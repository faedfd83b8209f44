package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"crewsheet/internal/csvexport"
	"crewsheet/internal/events"
	"crewsheet/internal/orchestrator"
	"crewsheet/internal/session"
	"crewsheet/internal/tools"
)

// Sessions is the registry the handlers serve from.
type Sessions interface {
	Create() *orchestrator.Orchestrator
	Get(id string) (*orchestrator.Orchestrator, error)
	Delete(id string) error
}

// SessionHandler serves the session JSON API.
type SessionHandler struct {
	sessions Sessions
	logger   *log.Logger
}

func NewSessionHandler(sessions Sessions, logger *log.Logger) *SessionHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &SessionHandler{sessions: sessions, logger: logger}
}

type counts struct {
	Entries   int `json:"entries"`
	Labor     int `json:"labor"`
	Materials int `json:"materials"`
}

type sessionView struct {
	SessionID            string             `json:"session_id"`
	State                orchestrator.State `json:"state"`
	Turns                int                `json:"turns"`
	Counts               counts             `json:"counts"`
	Revision             uint64             `json:"revision"`
	Events               int                `json:"events"`
	RequiresConfirmation bool               `json:"requires_confirmation"`
	Confirmed            bool               `json:"confirmed"`
	HasParser            bool               `json:"has_parser"`
}

func viewOf(o *orchestrator.Orchestrator) sessionView {
	e, l, m := o.Store().Counts()
	return sessionView{
		SessionID:            o.SessionID(),
		State:                o.State(),
		Turns:                o.Turns(),
		Counts:               counts{Entries: e, Labor: l, Materials: m},
		Revision:             o.Store().Revision(),
		Events:               o.Events().Len(),
		RequiresConfirmation: o.RequiresConfirmation(),
		Confirmed:            o.Confirmed(),
		HasParser:            o.HasParser(),
	}
}

func (h *SessionHandler) HandleCreate(w http.ResponseWriter, _ *http.Request) {
	o := h.sessions.Create()
	writeJSON(w, http.StatusCreated, viewOf(o))
}

func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(o))
}

func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if err := h.sessions.Delete(id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var in struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	res, err := o.HandleTurn(r.Context(), in.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) HandleCalls(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var in struct {
		Calls []orchestrator.Call `json:"calls"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, o.Dispatch(r.Context(), in.Calls))
}

func (h *SessionHandler) HandleRequestConfirmation(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, o.RequestConfirmation())
}

func (h *SessionHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := o.Confirm(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(o))
}

// HandleExport runs the export tool for the kind, so the confirmation gate,
// the export sink and the export event apply as they do in a turn.
func (h *SessionHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	kind, err := csvexport.ParseKind(strings.TrimSuffix(strings.TrimSpace(r.PathValue("kind")), ".csv"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	res := o.Dispatch(r.Context(), []orchestrator.Call{{Tool: tools.ExportTool(kind)}})
	if res.Failed() || len(res.Results) != 1 {
		writeJSON(w, http.StatusConflict, res)
		return
	}
	var out struct {
		CSV      string `json:"csv"`
		Location string `json:"location"`
	}
	if err := json.Unmarshal(res.Results[0].Output, &out); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+string(kind)+`.csv"`)
	if out.Location != "" {
		w.Header().Set("X-Export-Location", out.Location)
	}
	if warn := res.Results[0].Warning; warn != "" {
		w.Header().Set("X-Export-Warning", warn)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.CSV))
}

// HandleEvents replays the event log after the optional ?after= sequence.
func (h *SessionHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	o, ok := h.lookup(w, r)
	if !ok {
		return
	}
	after, err := afterParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	evs := o.Events().Since(after)
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": o.SessionID(),
		"closed":     o.Events().Closed(),
		"events":     evs,
	})
}

func (h *SessionHandler) HandleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools.Specs()})
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*orchestrator.Orchestrator, bool) {
	o, err := h.sessions.Get(strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return o, true
}

// fail maps known errors to statuses and logs the rest.
func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, orchestrator.ErrNoParser):
		writeError(w, http.StatusConflict, "no_parser", err)
	case errors.Is(err, orchestrator.ErrNotAwaitingConfirmation), errors.Is(err, orchestrator.ErrStaleConfirmation):
		writeError(w, http.StatusConflict, "confirmation", err)
	default:
		h.logger.Printf("gateway: %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusBadGateway, "internal", err)
	}
}

func afterParam(r *http.Request) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get("after"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.New("after must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": err.Error()},
	})
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}
