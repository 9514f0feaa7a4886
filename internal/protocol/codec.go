package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnknownEvent is returned when decoding an envelope with an unrecognized name.
var ErrUnknownEvent = errors.New("protocol: unknown event")

// Envelope is the JSON frame carried on the WebSocket.
type Envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type responsePayload struct {
	Output        *string  `json:"output,omitempty"`
	Prompt        *string  `json:"prompt,omitempty"`
	ExecutionTime *float64 `json:"execution_time,omitempty"`
	Command       *string  `json:"command,omitempty"`
}

type clearPayload struct {
	Cwd string `json:"cwd,omitempty"`
}

type sessionPayload struct {
	SessionID   string `json:"session_id"`
	ConnectedAt string `json:"connected_at"`
}

// EncodeEvent converts a server event into its envelope.
func EncodeEvent(ev Event) (Envelope, error) {
	var data any
	switch e := ev.(type) {
	case InitialPrompt:
		data = e.Prompt
	case Response:
		if e.Raw {
			data = e.Output
			break
		}
		p := responsePayload{Output: &e.Output}
		if e.Prompt != "" {
			p.Prompt = &e.Prompt
		}
		if e.ExecutionTime > 0 {
			t := math.Round(e.ExecutionTime*1000) / 1000
			p.ExecutionTime = &t
		}
		if e.Command != "" {
			p.Command = &e.Command
		}
		data = p
	case ClearTerminal:
		data = clearPayload{Cwd: e.Cwd}
	case SessionInfo:
		data = sessionPayload{
			SessionID:   e.SessionID,
			ConnectedAt: e.ConnectedAt.UTC().Format(time.RFC3339Nano),
		}
	case Output:
		data = e.Text
	default:
		return Envelope{}, fmt.Errorf("%w: cannot encode %T", ErrUnknownEvent, ev)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: ev.Kind(), Data: raw}, nil
}

// DecodeEvent converts an envelope received by a client into a typed event.
func DecodeEvent(env Envelope) (Event, error) {
	switch env.Event {
	case KindInitialPrompt:
		var s string
		if err := unmarshalOptional(env.Data, &s); err != nil {
			return nil, fmt.Errorf("decode initial_prompt: %w", err)
		}
		return InitialPrompt{Prompt: s}, nil
	case KindResponse:
		return decodeResponse(env.Data)
	case KindClearTerminal:
		var p clearPayload
		if err := unmarshalOptional(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode clear_terminal: %w", err)
		}
		return ClearTerminal{Cwd: p.Cwd}, nil
	case KindSessionInfo:
		var p sessionPayload
		if err := unmarshalOptional(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode session_info: %w", err)
		}
		info := SessionInfo{SessionID: p.SessionID}
		if p.ConnectedAt != "" {
			at, err := parseTimestamp(p.ConnectedAt)
			if err != nil {
				return nil, fmt.Errorf("decode session_info: %w", err)
			}
			info.ConnectedAt = at
		}
		return info, nil
	case KindOutput:
		var s string
		if err := unmarshalOptional(env.Data, &s); err != nil {
			return nil, fmt.Errorf("decode output: %w", err)
		}
		return Output{Text: s}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

func decodeResponse(data json.RawMessage) (Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return Response{Raw: true, Output: s}, nil
	}
	if len(trimmed) > 0 && trimmed[0] != '{' && !bytes.Equal(trimmed, []byte("null")) {
		// numbers, booleans and arrays are shown as their JSON text
		return Response{Raw: true, Output: string(trimmed)}, nil
	}
	var p responsePayload
	if err := unmarshalOptional(trimmed, &p); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	var r Response
	if p.Output != nil {
		r.Output = *p.Output
	}
	if p.Prompt != nil {
		r.Prompt = *p.Prompt
	}
	if p.ExecutionTime != nil {
		r.ExecutionTime = *p.ExecutionTime
	}
	if p.Command != nil {
		r.Command = *p.Command
	}
	return r, nil
}

// EncodeClient converts a client message into its envelope.
func EncodeClient(msg ClientMessage) (Envelope, error) {
	switch msg.Kind {
	case KindCommand, KindInput:
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Kind)
	}
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: msg.Kind, Data: raw}, nil
}

// DecodeClient converts an envelope received by the server.
func DecodeClient(env Envelope) (ClientMessage, error) {
	switch env.Event {
	case KindCommand, KindInput:
	default:
		return ClientMessage{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	var s string
	if err := unmarshalOptional(env.Data, &s); err != nil {
		return ClientMessage{}, fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return ClientMessage{Kind: env.Event, Data: s}, nil
}

func unmarshalOptional(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	return json.Unmarshal(data, v)
}

// parseTimestamp accepts RFC 3339 and the zone-less ISO 8601 form some
// servers send without an offset.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999999", s)
}
