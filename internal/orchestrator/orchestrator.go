// Package orchestrator runs one conversation: it takes an utterance or a set
// of proposed tool calls, dispatches them, and decides whether the session
// is waiting for input, a clarification, or an approval.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"crewsheet/internal/company"
	"crewsheet/internal/csvexport"
	"crewsheet/internal/dates"
	"crewsheet/internal/events"
	"crewsheet/internal/exportsink"
	"crewsheet/internal/timesheet"
	"crewsheet/internal/tools"
	"crewsheet/internal/validate"
)

type State string

const (
	AwaitingInput         State = "awaiting_input"
	Dispatching           State = "dispatching"
	AwaitingClarification State = "awaiting_clarification"
	AwaitingConfirmation  State = "awaiting_confirmation"
	Exporting             State = "exporting"
)

var (
	ErrNoParser                = errors.New("orchestrator: no parser configured")
	ErrNotAwaitingConfirmation = errors.New("orchestrator: no confirmation was requested")
	ErrStaleConfirmation       = errors.New("orchestrator: records changed since the summary was shown")
)

// Call is one proposed tool invocation.
type Call struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Proposal is what the parsing layer makes of an utterance.
type Proposal struct {
	Reply string `json:"reply,omitempty"`
	Calls []Call `json:"calls"`
}

// ParseInput is everything a parser may ground its proposal on.
type ParseInput struct {
	Utterance  string
	Transcript []Message
	Tools      []tools.Spec
	Company    tools.CompanyInfo
}

// Parser turns an utterance into tool calls. It is the only place a turn
// may block.
type Parser interface {
	Propose(ctx context.Context, in ParseInput) (Proposal, error)
}

// Options configure one session.
type Options struct {
	SessionID           string
	Company             *company.Config
	Dates               dates.Resolver
	FullDay             decimal.Decimal
	RequireConfirmation bool
	Sink                exportsink.Sink
	Parser              Parser
	Logger              *log.Logger
	// MaxTranscript bounds the history handed to the parser; 0 means 40.
	MaxTranscript int
}

// TurnResult is the union of every call outcome in one turn.
type TurnResult struct {
	Turn     int            `json:"turn"`
	State    State          `json:"state"`
	Reply    string         `json:"reply,omitempty"`
	FollowUp string         `json:"follow_up,omitempty"`
	Results  []tools.Result `json:"results"`
}

// Failed reports whether any call in the turn failed.
func (r TurnResult) Failed() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return true
		}
	}
	return false
}

// Orchestrator owns one session's store and event log. Turns are processed
// one at a time.
type Orchestrator struct {
	// turnMu serialises turns, including the parser call. mu guards the
	// fields below and is never held across the parser call.
	turnMu     sync.Mutex
	mu         sync.Mutex
	opts       Options
	logger     *log.Logger
	store      *timesheet.Store
	events     *events.Log
	dispatcher *tools.Dispatcher

	state       State
	turns       int
	transcript  []Message
	pendingRev  uint64
	approved    bool
	approvedRev uint64
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxTranscript <= 0 {
		opts.MaxTranscript = 40
	}
	store := timesheet.NewStore()
	evlog := events.NewLog()
	o := &Orchestrator{
		opts:   opts,
		logger: logger,
		store:  store,
		events: evlog,
		state:  AwaitingInput,
	}
	o.dispatcher = tools.NewDispatcher(tools.Host{
		SessionID: opts.SessionID,
		Company:   opts.Company,
		Store:     store,
		Events:    evlog,
		Validator: validate.Validator{Company: opts.Company, Dates: opts.Dates},
		Exporter:  csvexport.Exporter{FullDay: opts.FullDay},
		Sink:      opts.Sink,
		Logger:    logger,
	})
	return o
}

func (o *Orchestrator) SessionID() string        { return o.opts.SessionID }
func (o *Orchestrator) Store() *timesheet.Store  { return o.store }
func (o *Orchestrator) Events() *events.Log      { return o.events }
func (o *Orchestrator) Tools() []tools.Spec      { return o.dispatcher.Specs() }
func (o *Orchestrator) Company() *company.Config { return o.opts.Company }
func (o *Orchestrator) Exporter() csvexport.Exporter {
	return csvexport.Exporter{FullDay: o.opts.FullDay}
}
func (o *Orchestrator) RequiresConfirmation() bool { return o.opts.RequireConfirmation }

func (o *Orchestrator) SetParser(p Parser) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opts.Parser = p
}

func (o *Orchestrator) HasParser() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opts.Parser != nil
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Turns() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turns
}

// Transcript returns a copy of the conversation so far.
func (o *Orchestrator) Transcript() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.transcript...)
}

// HandleTurn asks the parser for tool calls and dispatches them. Nothing is
// applied until the parser returns; a parser error leaves the session as it
// was.
func (o *Orchestrator) HandleTurn(ctx context.Context, utterance string) (TurnResult, error) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	utterance = strings.TrimSpace(utterance)
	o.mu.Lock()
	parser := o.opts.Parser
	in := ParseInput{
		Utterance:  utterance,
		Transcript: o.recentTranscript(),
		Tools:      o.dispatcher.Specs(),
		Company:    tools.Snapshot(o.opts.Company),
	}
	o.mu.Unlock()
	if parser == nil {
		return TurnResult{}, ErrNoParser
	}

	proposal, err := parser.Propose(ctx, in)
	if err != nil {
		o.logger.Printf("orchestrator: session=%s parser failed: %v", o.opts.SessionID, err)
		return TurnResult{}, fmt.Errorf("orchestrator: parse turn: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.record(Message{Role: RoleUser, Content: utterance})
	res := o.dispatch(ctx, proposal.Calls)
	res.Reply = strings.TrimSpace(proposal.Reply)
	o.recordTurn(res)
	return res, nil
}

// Dispatch applies calls supplied directly by the caller.
func (o *Orchestrator) Dispatch(ctx context.Context, calls []Call) TurnResult {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()
	o.mu.Lock()
	defer o.mu.Unlock()
	res := o.dispatch(ctx, calls)
	o.recordTurn(res)
	return res
}

// dispatch must be called with o.mu held.
func (o *Orchestrator) dispatch(ctx context.Context, calls []Call) TurnResult {
	o.turns++
	o.state = Dispatching
	res := TurnResult{Turn: o.turns, Results: make([]tools.Result, 0, len(calls))}
	for _, c := range calls {
		spec, known := o.dispatcher.Lookup(c.Tool)
		if known && spec.Export != "" {
			if o.opts.RequireConfirmation && !o.isApproved() {
				res.Results = append(res.Results, o.rejectExport(c.Tool))
				continue
			}
			o.state = Exporting
		}
		res.Results = append(res.Results, o.dispatcher.Call(ctx, c.Tool, c.Args))
		if o.state == Exporting {
			o.state = Dispatching
		}
	}

	o.state = AwaitingInput
	failed := 0
	for _, r := range res.Results {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		o.state = AwaitingClarification
		res.FollowUp = FollowUp(res.Results)
	}
	res.State = o.state
	o.logger.Printf("orchestrator: session=%s turn=%d calls=%d failed=%d state=%s",
		o.opts.SessionID, res.Turn, len(calls), failed, o.state)
	return res
}

func (o *Orchestrator) rejectExport(tool string) tools.Result {
	fe := validate.FieldError{
		Field:   "confirmation",
		Code:    validate.ExportNotConfirmed,
		Message: "Please review the summary and confirm the records before exporting",
	}
	if _, err := o.events.Emit(events.Event{Type: events.ValidationFailed, Key: tool, Errors: []validate.FieldError{fe}}); err != nil {
		o.logger.Printf("orchestrator: emit: %v", err)
	}
	return tools.Result{Tool: tool, Status: tools.StatusError, Errors: []validate.FieldError{fe}}
}

func (o *Orchestrator) isApproved() bool {
	return o.approved && o.approvedRev == o.store.Revision()
}

// Summary is what the supervisor approves before export.
type Summary struct {
	Revision  uint64                     `json:"revision"`
	Entries   []timesheet.Entry          `json:"entries"`
	Labor     []timesheet.LaborRecord    `json:"labor"`
	Materials []timesheet.MaterialRecord `json:"materials"`
	Text      string                     `json:"text"`
}

// RequestConfirmation moves the session to AwaitingConfirmation and returns
// the records to review.
func (o *Orchestrator) RequestConfirmation() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Summary{
		Revision:  o.store.Revision(),
		Entries:   o.store.Entries(),
		Labor:     o.store.Labor(),
		Materials: o.store.Materials(),
	}
	s.Text = summaryText(s, o.opts.FullDay)
	o.pendingRev = s.Revision
	o.state = AwaitingConfirmation
	return s
}

// Confirm approves the records shown by RequestConfirmation. Any later
// mutation withdraws the approval.
func (o *Orchestrator) Confirm() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != AwaitingConfirmation {
		return ErrNotAwaitingConfirmation
	}
	if o.store.Revision() != o.pendingRev {
		return ErrStaleConfirmation
	}
	o.approved = true
	o.approvedRev = o.pendingRev
	o.state = AwaitingInput
	o.logger.Printf("orchestrator: session=%s confirmed revision=%d", o.opts.SessionID, o.approvedRev)
	return nil
}

// Confirmed reports whether the current records are approved for export.
func (o *Orchestrator) Confirmed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isApproved()
}

// Close ends the session's event sequence.
func (o *Orchestrator) Close() {
	o.events.Close()
}
