// Package kernel speaks the Jupyter wire protocol to an R kernel behind
// the Kernel Gateway websocket channels endpoint.
package kernel

import (
	"context"
	"time"

	"github.com/polyglotlab/sosr/pkg/common/uuid"
)

const protocolVersion = "5.3"

type Header struct {
	MsgID    string `json:"msg_id"`
	Username string `json:"username"`
	Session  string `json:"session"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
	Date     string `json:"date"`
}

// Message is one frame on any channel, the gateway multiplexes all
// channels over a single websocket and tags each frame with its name.
type Message struct {
	Header       Header         `json:"header"`
	ParentHeader Header         `json:"parent_header"`
	Metadata     map[string]any `json:"metadata"`
	Content      map[string]any `json:"content"`
	Channel      string         `json:"channel"`
}

// NewExecuteRequest builds a shell execute_request frame owned by the
// given wire session.
func NewExecuteRequest(session, code string, silent bool) *Message {
	return &Message{
		Header: Header{
			MsgID:    uuid.NewV4().String(),
			Username: "sosr",
			Session:  session,
			MsgType:  "execute_request",
			Version:  protocolVersion,
			Date:     time.Now().UTC().Format(time.RFC3339),
		},
		Metadata: map[string]any{},
		Content: map[string]any{
			"code":             code,
			"silent":           silent,
			"store_history":    false,
			"user_expressions": map[string]any{},
			"allow_stdin":      false,
			"stop_on_error":    true,
		},
		Channel: "shell",
	}
}

// IsChildOf reports whether the frame was produced for the given request.
func (m *Message) IsChildOf(msgID string) bool {
	return m.ParentHeader.MsgID == msgID
}

// ExecutionState returns the state of a status frame, empty otherwise.
func (m *Message) ExecutionState() string {
	if m.Header.MsgType != "status" {
		return ""
	}
	state, _ := m.Content["execution_state"].(string)
	return state
}

// StreamText returns the stream name and text of a stream frame.
func (m *Message) StreamText() (string, string) {
	if m.Header.MsgType != "stream" {
		return "", ""
	}
	name, _ := m.Content["name"].(string)
	text, _ := m.Content["text"].(string)
	return name, text
}

// ErrorText flattens an error frame into one string.
func (m *Message) ErrorText() string {
	if m.Header.MsgType != "error" {
		return ""
	}
	ename, _ := m.Content["ename"].(string)
	evalue, _ := m.Content["evalue"].(string)
	if ename == "" {
		return evalue
	}
	if evalue == "" {
		return ename
	}
	return ename + ": " + evalue
}

// Kernel is one live connection to an R kernel.
type Kernel interface {
	// ID is the gateway kernel id.
	ID() string
	// Execute runs code silently and fails on any error frame.
	Execute(ctx context.Context, code string) error
	// GetResponse runs code and collects the iopub frames of the given
	// msg types until the kernel goes idle.
	GetResponse(ctx context.Context, code string, msgTypes ...string) ([]*Message, error)
	// Stdout runs code and concatenates its stdout stream output.
	Stdout(ctx context.Context, code string) (string, error)
	Close(ctx context.Context) error
}
