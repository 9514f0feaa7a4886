package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func decodeFrame(t *testing.T, frame string) Event {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(frame), &env))
	ev, err := DecodeEvent(env)
	require.NoError(t, err)
	return ev
}

func TestDecodeResponseStructured(t *testing.T) {
	ev := decodeFrame(t, `{"event":"response","data":{"output":"hi\n","prompt":"/tmp $ ","execution_time":2.5,"command":"sleep 2"}}`)
	require.Equal(t, Response{Output: "hi\n", Prompt: "/tmp $ ", ExecutionTime: 2.5, Command: "sleep 2"}, ev)
}

func TestDecodeResponseRawString(t *testing.T) {
	ev := decodeFrame(t, `{"event":"response","data":"plain text"}`)
	require.Equal(t, Response{Raw: true, Output: "plain text"}, ev)
}

func TestDecodeResponseScalarData(t *testing.T) {
	tests := map[string]string{
		`42`:       "42",
		`true`:     "true",
		`[1, "a"]`: `[1, "a"]`,
		` 3.5e2 `:  "3.5e2",
	}
	for data, want := range tests {
		ev := decodeFrame(t, `{"event":"response","data":`+data+`}`)
		require.Equal(t, Response{Raw: true, Output: want}, ev, "data %s", data)
	}

	ev := decodeFrame(t, `{"event":"response","data":null}`)
	require.Equal(t, Response{}, ev)
}

func TestDecodeResponseMissingFields(t *testing.T) {
	ev := decodeFrame(t, `{"event":"response","data":{"prompt":"$ "}}`)
	require.Equal(t, Response{Prompt: "$ "}, ev)
}

func TestDecodeSessionInfoZonelessTimestamp(t *testing.T) {
	ev := decodeFrame(t, `{"event":"session_info","data":{"session_id":"abc","connected_at":"2024-05-01T10:20:30.123456"}}`)
	info, ok := ev.(SessionInfo)
	require.True(t, ok)
	require.Equal(t, "abc", info.SessionID)
	require.Equal(t, time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.UTC), info.ConnectedAt)
}

func TestDecodeClearTerminalWithoutCwd(t *testing.T) {
	ev := decodeFrame(t, `{"event":"clear_terminal"}`)
	require.Equal(t, ClearTerminal{}, ev)
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := DecodeEvent(Envelope{Event: "bogus"})
	require.True(t, errors.Is(err, ErrUnknownEvent))
}

func TestEncodeEventRoundTrip(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []Event{
		InitialPrompt{Prompt: "/home $ "},
		Response{Output: "", Prompt: "/home $ "},
		Response{Output: "x", Prompt: "p", ExecutionTime: 0.123, Command: "ls"},
		Response{Raw: true, Output: "raw"},
		ClearTerminal{Cwd: "/srv"},
		SessionInfo{SessionID: "s1", ConnectedAt: at},
		Output{Text: "\b \b"},
	}
	for _, want := range events {
		env, err := EncodeEvent(want)
		require.NoError(t, err)
		got, err := DecodeEvent(env)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestEncodeResponseRoundsExecutionTime(t *testing.T) {
	env, err := EncodeEvent(Response{Output: "", ExecutionTime: 1.23456})
	require.NoError(t, err)
	require.JSONEq(t, `{"output":"","execution_time":1.235}`, string(env.Data))
}

func TestEncodeConnectedIsLocalOnly(t *testing.T) {
	_, err := EncodeEvent(Connected{})
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestClientMessages(t *testing.T) {
	env, err := EncodeClient(Command(""))
	require.NoError(t, err)
	require.Equal(t, KindCommand, env.Event)
	require.Equal(t, `""`, string(env.Data))

	msg, err := DecodeClient(env)
	require.NoError(t, err)
	require.Equal(t, Command(""), msg)

	_, err = DecodeClient(Envelope{Event: KindResponse, Data: []byte(`"x"`)})
	require.ErrorIs(t, err, ErrUnknownEvent)
}
