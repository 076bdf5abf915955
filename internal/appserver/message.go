package appserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
)

// Kind classifies what the session fans out to subscribers. Responses to our
// own requests never reach subscribers.
type Kind int

const (
	KindNotification Kind = iota
	KindRequest
	KindParseError
	KindProcessClosed
)

func (k Kind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindRequest:
		return "request"
	case KindParseError:
		return "parse_error"
	case KindProcessClosed:
		return "process_closed"
	default:
		return "unknown"
	}
}

// Message is one dispatched line, or a synthetic marker produced by the
// session itself (parse error, process closed).
type Message struct {
	Kind   Kind
	ID     json.RawMessage
	Method string
	Params json.RawMessage
	Raw    string
	Err    error
}

// wireMessage covers all three protocol shapes.
type wireMessage struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

type outgoingRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type outgoingNotification struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type outgoingResponse struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result"`
}

func (m wireMessage) hasID() bool {
	return len(m.ID) > 0 && !bytes.Equal(m.ID, []byte("null"))
}

func (m wireMessage) isResponse() bool {
	return m.hasID() && m.Method == ""
}

// numericID returns the id as an int64 when it is a JSON number, or a string
// holding one.
func (m wireMessage) numericID() (int64, bool) {
	if !m.hasID() {
		return 0, false
	}
	raw := bytes.TrimSpace(m.ID)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		raw = []byte(s)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// responseError decodes the error member of a response, tolerating servers
// that send a bare string.
func (m wireMessage) responseError() *RPCError {
	if len(m.Error) == 0 || bytes.Equal(m.Error, []byte("null")) {
		return nil
	}
	var payload struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data,omitempty"`
	}
	if err := json.Unmarshal(m.Error, &payload); err == nil {
		return &RPCError{Code: payload.Code, Message: payload.Message, Data: payload.Data}
	}
	var text string
	if err := json.Unmarshal(m.Error, &text); err == nil {
		return &RPCError{Message: text}
	}
	return &RPCError{Message: string(m.Error)}
}

// decodeMessage parses one protocol line. Blank lines yield ok=false and no
// error.
func decodeMessage(line []byte) (msg wireMessage, ok bool, err error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return wireMessage{}, false, nil
	}
	if err := json.Unmarshal(line, &msg); err != nil {
		return wireMessage{}, false, &ProtocolError{Message: "failed to parse codex app-server JSONL output", Line: string(line), Cause: err}
	}
	return msg, true, nil
}

func encodeLine(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// lineFramer splits a byte stream into newline-terminated lines. A trailing
// fragment without a newline at EOF is reported separately and never framed.
type lineFramer struct {
	reader *bufio.Reader
}

func newLineFramer(r io.Reader) *lineFramer {
	return &lineFramer{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next whole line without its terminator. At end of stream
// it returns io.EOF together with any unterminated remainder.
func (f *lineFramer) Next() ([]byte, error) {
	line, err := f.reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return line, io.EOF
		}
		return line, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}
