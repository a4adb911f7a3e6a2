package runner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errNotObject    = errors.New("record is not a JSON object")
	errMissingType  = errors.New("missing or empty type field")
	errEmptyRecord  = errors.New("empty output")
	errMissingField = errors.New("missing required field")
)

// wireEvent is the union of every stream-json field we read.
type wireEvent struct {
	Type       string          `json:"type"`
	Timestamp  string          `json:"timestamp"`
	SessionID  string          `json:"session_id"`
	Model      string          `json:"model"`
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	Delta      bool            `json:"delta"`
	ToolName   string          `json:"tool_name"`
	ToolID     string          `json:"tool_id"`
	Parameters json.RawMessage `json:"parameters"`
	Status     string          `json:"status"`
	Output     json.RawMessage `json:"output"`
	Error      json.RawMessage `json:"error"`
	Stats      json.RawMessage `json:"stats"`
	Response   *string         `json:"response"`
	Message    string          `json:"message"`
	ErrType    string          `json:"error_type"`
	Code       *int            `json:"code"`
}

// DecodeEvent decodes one stream-json record. Blank input, invalid JSON,
// unknown types, and records missing a variant's required field all fail
// with a *DecodeError.
func DecodeEvent(record []byte) (Event, error) {
	ev, err := decodeEvent(record)
	if err != nil {
		return nil, &DecodeError{Record: record, Err: err}
	}
	return ev, nil
}

func decodeEvent(record []byte) (Event, error) {
	fields, err := objectFields(record)
	if err != nil {
		return nil, err
	}
	var w wireEvent
	if err := json.Unmarshal(record, &w); err != nil {
		return nil, err
	}
	if w.Type == "" {
		return nil, errMissingType
	}

	switch EventKind(w.Type) {
	case KindInit:
		return &Init{SessionID: w.SessionID, Model: w.Model, Timestamp: w.Timestamp}, nil

	case KindMessage:
		if err := require(fields, "content"); err != nil {
			return nil, err
		}
		return &Message{Role: w.Role, Content: w.Content, Delta: w.Delta, Timestamp: w.Timestamp}, nil

	case KindToolUse:
		if err := require(fields, "tool_name"); err != nil {
			return nil, err
		}
		return &ToolUse{ToolName: w.ToolName, ToolID: w.ToolID, Arguments: w.Parameters, Timestamp: w.Timestamp}, nil

	case KindToolResult:
		if err := require(fields, "status"); err != nil {
			return nil, err
		}
		tr := &ToolResult{
			ToolName:  w.ToolName,
			ToolID:    w.ToolID,
			Status:    w.Status,
			Output:    rawText(w.Output),
			Timestamp: w.Timestamp,
		}
		if tr.ToolName == "" {
			tr.ToolName = w.ToolID
		}
		if detail, ok := errorDetail(w.Error); ok {
			tr.Error = &detail
		}
		return tr, nil

	case KindResult:
		if err := require(fields, "status"); err != nil {
			return nil, err
		}
		if w.Status != "success" {
			detail, ok := errorDetail(w.Error)
			if !ok {
				detail = ErrorDetail{Message: "result status: " + w.Status}
			}
			return &Error{Detail: detail, Timestamp: w.Timestamp}, nil
		}
		res := &Result{Stats: newStats(w.Stats), Timestamp: w.Timestamp}
		if w.Response != nil {
			res.FinalText = *w.Response
		}
		return res, nil

	case KindError:
		if err := require(fields, "message"); err != nil {
			return nil, err
		}
		return &Error{
			Detail:    ErrorDetail{Type: w.ErrType, Message: w.Message, Code: w.Code},
			Timestamp: w.Timestamp,
		}, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", w.Type)
	}
}

// jsonDocument is the single object printed by --output-format json.
type jsonDocument struct {
	SessionID string          `json:"session_id"`
	Response  *string         `json:"response"`
	Stats     json.RawMessage `json:"stats"`
	Error     json.RawMessage `json:"error"`
}

// DecodeDocument decodes the whole output of --output-format json into
// events: an optional Init, then exactly one terminal event.
func DecodeDocument(data []byte) ([]Event, error) {
	evs, err := decodeDocument(data)
	if err != nil {
		return nil, &DecodeError{Record: data, Err: err}
	}
	return evs, nil
}

func decodeDocument(data []byte) ([]Event, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyRecord
	}
	if _, err := objectFields(data); err != nil {
		return nil, err
	}
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var evs []Event
	if doc.SessionID != "" {
		evs = append(evs, &Init{SessionID: doc.SessionID})
	}
	if detail, ok := errorDetail(doc.Error); ok {
		return append(evs, &Error{Detail: detail}), nil
	}
	if doc.Response == nil {
		return nil, fmt.Errorf("%w: response", errMissingField)
	}
	return append(evs, &Result{FinalText: *doc.Response, Stats: newStats(doc.Stats)}), nil
}

// objectFields checks that data is a JSON object and returns its top-level keys.
func objectFields(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errEmptyRecord
	}
	if trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("invalid JSON: %s", truncate(string(trimmed), 40))
		}
		return nil, errNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func require(fields map[string]json.RawMessage, names ...string) error {
	for _, n := range names {
		if _, ok := fields[n]; !ok {
			return fmt.Errorf("%w: %s", errMissingField, n)
		}
	}
	return nil
}

// errorDetail decodes an "error" field that is either an object or a bare string.
func errorDetail(raw json.RawMessage) (ErrorDetail, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return ErrorDetail{}, false
	}
	var d ErrorDetail
	if err := json.Unmarshal(raw, &d); err == nil {
		return d, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ErrorDetail{Message: s}, true
	}
	return ErrorDetail{Message: string(raw)}, true
}

// rawText renders a JSON value as text: strings unquoted, anything else verbatim.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
