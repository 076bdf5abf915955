package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"codexbridge/internal/appserver"
	"codexbridge/internal/mailbox"
)

// ErrKilled is the wait error of a fake child stopped through Conn.Kill.
var ErrKilled = errors.New("signal: killed")

// FakeMessage is one line the fake received from the session.
type FakeMessage struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

func (m FakeMessage) IsRequest() bool {
	return len(m.ID) > 0 && m.Method != ""
}

func (m FakeMessage) IsNotification() bool {
	return len(m.ID) == 0 && m.Method != ""
}

// Handler reacts to one received line. It runs on a dedicated goroutine per
// child, in receive order.
type Handler func(conn *FakeConn, msg FakeMessage)

// FakeAppServer hands out in-memory children to an appserver.Session.
type FakeAppServer struct {
	handler  Handler
	spawnErr error

	mu       sync.Mutex
	conns    []*FakeConn
	received []FakeMessage
	specs    []appserver.CommandSpec
}

func NewFakeAppServer(handler Handler) *FakeAppServer {
	return &FakeAppServer{handler: handler}
}

// FailSpawns makes every later spawn fail with err.
func (f *FakeAppServer) FailSpawns(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawnErr = err
}

func (f *FakeAppServer) Spawner() appserver.Spawner {
	return func(_ context.Context, spec appserver.CommandSpec) (*appserver.Conn, error) {
		f.mu.Lock()
		if f.spawnErr != nil {
			err := f.spawnErr
			f.mu.Unlock()
			return nil, err
		}
		conn := newFakeConn(f)
		f.conns = append(f.conns, conn)
		f.specs = append(f.specs, spec)
		f.mu.Unlock()
		conn.start()
		return conn.appserverConn(), nil
	}
}

// Spawns returns how many children were started.
func (f *FakeAppServer) Spawns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *FakeAppServer) Specs() []appserver.CommandSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]appserver.CommandSpec{}, f.specs...)
}

// Conn returns the i-th spawned child.
func (f *FakeAppServer) Conn(i int) *FakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.conns) {
		return nil
	}
	return f.conns[i]
}

// Received returns every line received across all children, in order.
func (f *FakeAppServer) Received() []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeMessage{}, f.received...)
}

// Requests returns the received requests and notifications for method.
func (f *FakeAppServer) Requests(method string) []FakeMessage {
	var out []FakeMessage
	for _, msg := range f.Received() {
		if msg.Method == method {
			out = append(out, msg)
		}
	}
	return out
}

// Responses returns the received replies to server-initiated requests.
func (f *FakeAppServer) Responses() []FakeMessage {
	var out []FakeMessage
	for _, msg := range f.Received() {
		if msg.Method == "" && len(msg.ID) > 0 {
			out = append(out, msg)
		}
	}
	return out
}

func (f *FakeAppServer) record(msg FakeMessage) {
	f.mu.Lock()
	f.received = append(f.received, msg)
	f.mu.Unlock()
}

// FakeConn is one in-memory child. Writes never block the caller.
type FakeConn struct {
	server *FakeAppServer

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	inbox  *mailbox.Mailbox[FakeMessage]
	outbox *mailbox.Mailbox[string]

	exitOnce sync.Once
	stderrMu sync.Mutex
	stderr   string
	exitErr  error
	wait     chan error
	flushed  chan struct{}
}

func newFakeConn(server *FakeAppServer) *FakeConn {
	c := &FakeConn{
		server:  server,
		inbox:   mailbox.New[FakeMessage](),
		outbox:  mailbox.New[string](),
		wait:    make(chan error, 1),
		flushed: make(chan struct{}),
	}
	c.stdinR, c.stdinW = io.Pipe()
	c.stdoutR, c.stdoutW = io.Pipe()
	c.stderrR, c.stderrW = io.Pipe()
	return c
}

func (c *FakeConn) appserverConn() *appserver.Conn {
	return &appserver.Conn{
		Stdin:  c.stdinW,
		Stdout: c.stdoutR,
		Stderr: c.stderrR,
		Wait: func() error {
			return <-c.wait
		},
		Kill: func() error {
			c.Exit("", ErrKilled)
			return nil
		},
	}
}

func (c *FakeConn) start() {
	go c.readLoop()
	go c.handleLoop()
	go c.writeLoop()
}

func (c *FakeConn) readLoop() {
	dec := json.NewDecoder(c.stdinR)
	for {
		var msg FakeMessage
		if err := dec.Decode(&msg); err != nil {
			c.inbox.Finish()
			c.Exit("", nil)
			return
		}
		c.server.record(msg)
		c.inbox.Put(msg)
	}
}

func (c *FakeConn) handleLoop() {
	for msg := range c.inbox.Out() {
		if c.server.handler != nil {
			c.server.handler(c, msg)
		}
	}
}

func (c *FakeConn) writeLoop() {
	for chunk := range c.outbox.Out() {
		if _, err := io.WriteString(c.stdoutW, chunk); err != nil {
			break
		}
	}
	_ = c.stdoutW.Close()
	c.stderrMu.Lock()
	stderr := c.stderr
	err := c.exitErr
	c.stderrMu.Unlock()
	if stderr != "" {
		_, _ = io.WriteString(c.stderrW, stderr)
	}
	_ = c.stderrW.Close()
	close(c.flushed)
	c.wait <- err
}

// Send writes v as one JSON line.
func (c *FakeConn) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	c.outbox.Put(string(data) + "\n")
}

// SendRaw writes data verbatim, without adding a newline.
func (c *FakeConn) SendRaw(data string) {
	c.outbox.Put(data)
}

// Reply answers request msg with result.
func (c *FakeConn) Reply(msg FakeMessage, result any) {
	c.Send(map[string]any{"id": msg.ID, "result": result})
}

// ReplyError answers request msg with an error member.
func (c *FakeConn) ReplyError(msg FakeMessage, code int, message string) {
	c.Send(map[string]any{"id": msg.ID, "error": map[string]any{"code": code, "message": message}})
}

// Exit flushes queued output, writes stderr and terminates the child with
// waitErr as its wait result. Later calls are ignored.
func (c *FakeConn) Exit(stderr string, waitErr error) {
	c.exitOnce.Do(func() {
		c.stderrMu.Lock()
		c.stderr = stderr
		c.exitErr = waitErr
		c.stderrMu.Unlock()
		c.outbox.Finish()
		_ = c.stdinR.CloseWithError(io.EOF)
	})
}

// Exited is closed once the child's output was fully flushed.
func (c *FakeConn) Exited() <-chan struct{} {
	return c.flushed
}

// Stderr returns the stderr text the child exited with.
func (c *FakeConn) Stderr() string {
	c.stderrMu.Lock()
	defer c.stderrMu.Unlock()
	return strings.TrimSpace(c.stderr)
}
