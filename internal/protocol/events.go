// Package protocol defines the events exchanged between a webterm client and
// the command-execution server.
//
// Frames are JSON envelopes of the form {"event": "<name>", "data": <json>}.
// Incoming events decode into one concrete Go type per kind so consumers can
// switch on type instead of comparing strings.
//
// Empty command contract: a client may send a "command" event whose data is
// the empty string. The server answers it with a Response carrying an empty
// output and a fresh prompt, and does not record it anywhere. Clients use it
// to request a new prompt (Ctrl+C in the line editor).
package protocol

import "time"

// Kind names an event on the wire.
type Kind string

const (
	KindConnect       Kind = "connect"
	KindDisconnect    Kind = "disconnect"
	KindInitialPrompt Kind = "initial_prompt"
	KindResponse      Kind = "response"
	KindClearTerminal Kind = "clear_terminal"
	KindSessionInfo   Kind = "session_info"
	KindOutput        Kind = "output"

	KindCommand Kind = "command"
	KindInput   Kind = "input"
)

// Event is a server-to-client event. Connected and Disconnected never travel
// on the wire; the transport synthesizes them.
type Event interface {
	Kind() Kind
}

// Connected is emitted once the transport is established.
type Connected struct{}

// Disconnected is emitted when the transport ends. Err is nil on a clean close.
type Disconnected struct {
	Err error
}

// InitialPrompt carries the prompt sent right after connecting.
type InitialPrompt struct {
	Prompt string
}

// Response is the result of a submitted command. Raw is set when the server
// sent a bare string instead of a structured payload; Output then holds it.
type Response struct {
	Raw           bool
	Output        string
	Prompt        string
	ExecutionTime float64
	Command       string
}

// ClearTerminal asks the client to clear its surface. Cwd may be empty.
type ClearTerminal struct {
	Cwd string
}

// SessionInfo carries server-assigned session metadata.
type SessionInfo struct {
	SessionID   string
	ConnectedAt time.Time
}

// Output is raw echo text for thin clients that let the server edit lines.
type Output struct {
	Text string
}

func (Connected) Kind() Kind     { return KindConnect }
func (Disconnected) Kind() Kind  { return KindDisconnect }
func (InitialPrompt) Kind() Kind { return KindInitialPrompt }
func (Response) Kind() Kind      { return KindResponse }
func (ClearTerminal) Kind() Kind { return KindClearTerminal }
func (SessionInfo) Kind() Kind   { return KindSessionInfo }
func (Output) Kind() Kind        { return KindOutput }

// ClientMessage is a client-to-server event: a submitted command or raw input.
type ClientMessage struct {
	Kind Kind
	Data string
}

// Command builds a command submission. An empty cmd requests a fresh prompt.
func Command(cmd string) ClientMessage {
	return ClientMessage{Kind: KindCommand, Data: cmd}
}

// Input builds a raw keystroke message.
func Input(data string) ClientMessage {
	return ClientMessage{Kind: KindInput, Data: data}
}
