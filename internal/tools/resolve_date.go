package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"crewsheet/internal/dates"
	"crewsheet/internal/validate"
)

// --------------------- resolve_date ---------------------

type resolveDateTool struct{ host Host }

func (t *resolveDateTool) Spec() Spec {
	return Spec{
		Name:        ResolveDate,
		Description: "Resolve a relative or natural-language date to ISO YYYY-MM-DD.",
		InputSchema: json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["phrase"],
  "properties": {
    "phrase": {"type": "string", "description": "e.g. \"today\", \"yesterday\", \"September 9 2025\"."},
    "timezone": {"type": "string", "description": "IANA zone; defaults to the session zone."},
    "base_date": {"type": "string", "description": "YYYY-MM-DD anchor for relative phrases."}
  }
}`),
	}
}

type resolveDateArgs struct {
	Phrase   string `json:"phrase"`
	Timezone string `json:"timezone"`
	BaseDate string `json:"base_date"`
}

func (t *resolveDateTool) Call(_ context.Context, input json.RawMessage) Result {
	var in resolveDateArgs
	if err := decodeArgs("date", input, &in); err != nil {
		return t.host.fail(ResolveDate, err)
	}
	if strings.TrimSpace(in.Phrase) == "" {
		return t.host.fail(ResolveDate, &validate.Error{Kind: "date", Fields: []validate.FieldError{{
			Field: "phrase", Code: validate.MissingField, Message: "Phrase is required",
		}}})
	}
	date, err := t.host.Validator.Dates.Resolve(in.Phrase, in.Timezone, in.BaseDate)
	if err != nil {
		fe := validate.FieldError{
			Field: "phrase", Code: validate.InvalidValue,
			Message: "Could not understand the date " + strings.TrimSpace(in.Phrase), Value: in.Phrase,
		}
		switch {
		case errors.Is(err, dates.ErrBaseDate):
			fe = validate.FieldError{
				Field: "base_date", Code: validate.InvalidValue,
				Message: "Base date must be YYYY-MM-DD", Value: in.BaseDate,
			}
		case errors.Is(err, dates.ErrUnparseable):
			fe.Code = validate.UnparseableDate
		}
		return t.host.fail(ResolveDate, &validate.Error{Kind: "date", Fields: []validate.FieldError{fe}})
	}
	res := success(ResolveDate, map[string]string{"date": date})
	res.Key = date
	return res
}
