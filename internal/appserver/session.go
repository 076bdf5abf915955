package appserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"codexbridge/internal/logging"
)

const maxStderrBytes = 64 * 1024

// ClientInfo is sent with the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Version string `json:"version"`
}

var DefaultClientInfo = ClientInfo{
	Name:    "codexbridge",
	Title:   "Codex Bridge",
	Version: "0.1.0",
}

type SessionOptions struct {
	Command    CommandSpec
	Spawner    Spawner
	Responder  ApprovalResponder
	Observer   ApprovalObserver
	ClientInfo ClientInfo
	Logger     logging.Logger
	Now        func() time.Time
}

// Session owns one lazily started app-server child. The child is spawned on
// first use and again on the next use after it exits. Request ids increase for
// the lifetime of the session and are never reused.
type Session struct {
	spec       CommandSpec
	spawn      Spawner
	responder  ApprovalResponder
	observer   ApprovalObserver
	clientInfo ClientInfo
	logger     logging.Logger
	now        func() time.Time
	hub        *Hub

	mu      sync.Mutex
	proc    *childProcess
	nextID  int64
	pending map[int64]chan rpcResult
	closed  bool
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

type childProcess struct {
	conn    *Conn
	writeMu sync.Mutex
	stderr  *tailBuffer
	done    chan struct{}

	initMu sync.Mutex
	init   *initCall
}

type initCall struct {
	done chan struct{}
	err  error
}

func NewSession(opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	spawn := opts.Spawner
	if spawn == nil {
		spawn = ExecSpawner
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	info := opts.ClientInfo
	if info.Name == "" {
		info = DefaultClientInfo
	}
	return &Session{
		spec:       opts.Command,
		spawn:      spawn,
		responder:  opts.Responder,
		observer:   opts.Observer,
		clientInfo: info,
		logger:     logger,
		now:        now,
		hub:        NewHub(),
		pending:    map[int64]chan rpcResult{},
	}
}

// Subscribe receives every notification, unanswered server request, parse
// error and process exit from now on.
func (s *Session) Subscribe() (<-chan Message, func()) {
	return s.hub.Subscribe()
}

// Running reports whether a child is currently attached.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil
}

func (s *Session) ensure(ctx context.Context) (*childProcess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.proc != nil {
		return s.proc, nil
	}
	conn, err := s.spawn(ctx, s.spec)
	if err != nil {
		s.logger.Error("appserver_spawn_failed", logging.F("cmd", s.spec.path()), logging.F("error", err))
		return nil, &ProcessError{Message: "failed to start codex app-server: " + err.Error(), Cause: err}
	}
	p := &childProcess{
		conn:   conn,
		stderr: &tailBuffer{limit: maxStderrBytes},
		done:   make(chan struct{}),
	}
	s.proc = p
	s.logger.Info("appserver_spawn", logging.F("cmd", s.spec.path()), logging.F("args", strings.Join(s.spec.args(), " ")))
	go s.run(p)
	return p, nil
}

func (s *Session) run(p *childProcess) {
	var stderrDone chan struct{}
	if p.conn.Stderr != nil {
		stderrDone = make(chan struct{})
		go func() {
			defer close(stderrDone)
			_, _ = io.Copy(p.stderr, p.conn.Stderr)
		}()
	}
	if p.conn.Stdout != nil {
		s.readLoop(p)
	}
	if stderrDone != nil {
		<-stderrDone
	}
	var waitErr error
	if p.conn.Wait != nil {
		waitErr = p.conn.Wait()
	}
	s.handleExit(p, waitErr)
}

func (s *Session) readLoop(p *childProcess) {
	framer := newLineFramer(p.conn.Stdout)
	for {
		line, err := framer.Next()
		if err != nil {
			if len(bytes.TrimSpace(line)) > 0 {
				s.logger.Debug("appserver_partial_line_dropped", logging.F("bytes", len(line)))
			}
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("appserver_read_error", logging.F("error", err))
			}
			return
		}
		s.dispatch(p, line)
	}
}

func (s *Session) dispatch(p *childProcess, line []byte) {
	msg, ok, err := decodeMessage(line)
	if err != nil {
		s.logger.Warn("appserver_parse_error", logging.F("error", err), logging.F("line", truncate(string(line), 200)))
		s.hub.Broadcast(Message{Kind: KindParseError, Raw: string(line), Err: err})
		return
	}
	if !ok {
		return
	}
	switch {
	case msg.isResponse():
		s.settle(msg)
	case msg.Method != "" && msg.hasID():
		if result, handled := s.responder.Respond(msg.Method, msg.Params); handled {
			if err := s.respond(p, msg.ID, result); err != nil {
				s.logger.Warn("appserver_approval_reply_failed", logging.F("method", msg.Method), logging.F("error", err))
				return
			}
			s.logger.Info("appserver_approval", logging.F("method", msg.Method), logging.F("id", string(msg.ID)))
			if s.observer != nil {
				s.observer.ObserveApproval(newApprovalRecord(msg, result, s.now()))
			}
			return
		}
		s.logger.Debug("appserver_unhandled_request", logging.F("method", msg.Method))
		s.hub.Broadcast(Message{Kind: KindRequest, ID: msg.ID, Method: msg.Method, Params: msg.Params, Raw: string(line)})
	case msg.Method != "":
		s.hub.Broadcast(Message{Kind: KindNotification, Method: msg.Method, Params: msg.Params, Raw: string(line)})
	default:
		s.logger.Debug("appserver_unroutable_message", logging.F("line", truncate(string(line), 200)))
	}
}

func (s *Session) settle(msg wireMessage) {
	id, ok := msg.numericID()
	if !ok {
		s.logger.Debug("appserver_unmatched_response", logging.F("id", string(msg.ID)))
		return
	}
	s.mu.Lock()
	ch, found := s.pending[id]
	if found {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !found {
		s.logger.Debug("appserver_unmatched_response", logging.F("id", id))
		return
	}
	if rpcErr := msg.responseError(); rpcErr != nil {
		s.logger.Warn("appserver_rpc_error", logging.F("id", id), logging.F("code", rpcErr.Code), logging.F("message", rpcErr.Message))
		ch <- rpcResult{err: rpcErr}
		return
	}
	ch <- rpcResult{result: msg.Result}
}

func (s *Session) handleExit(p *childProcess, waitErr error) {
	message := strings.TrimSpace(p.stderr.String())
	if message == "" {
		message = describeExit(waitErr)
	}
	exitErr := &ProcessError{Message: message, Cause: ErrProcessExited}

	s.mu.Lock()
	if s.proc == p {
		s.proc = nil
	}
	pending := s.pending
	s.pending = map[int64]chan rpcResult{}
	s.mu.Unlock()

	for _, ch := range pending {
		ch <- rpcResult{err: exitErr}
	}
	close(p.done)
	s.logger.Info("appserver_exit", logging.F("message", truncate(message, 500)), logging.F("pending", len(pending)))
	s.hub.Broadcast(Message{Kind: KindProcessClosed, Err: exitErr})
}

// Request sends method and waits for its response. Cancelling ctx abandons the
// wait; the response, if it ever arrives, is dropped.
func (s *Session) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	p, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return s.requestOn(ctx, p, method, params)
}

func (s *Session) requestOn(ctx context.Context, p *childProcess, method string, params any) (json.RawMessage, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.proc != p {
		s.mu.Unlock()
		return nil, &ProcessError{Message: "codex app-server exited before the request was sent", Cause: ErrProcessExited}
	}
	s.nextID++
	id := s.nextID
	ch := make(chan rpcResult, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	if err := s.write(p, outgoingRequest{ID: id, Method: method, Params: params}); err != nil {
		s.forget(id)
		return nil, err
	}
	s.logger.Debug("appserver_send", logging.F("method", method), logging.F("id", id))

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		s.forget(id)
		return nil, ctx.Err()
	}
}

// Notify sends a notification. Nil params are omitted from the line.
func (s *Session) Notify(ctx context.Context, method string, params any) error {
	p, err := s.ensure(ctx)
	if err != nil {
		return err
	}
	if err := s.write(p, outgoingNotification{Method: method, Params: params}); err != nil {
		return err
	}
	s.logger.Debug("appserver_notify", logging.F("method", method))
	return nil
}

// Initialize performs the initialize handshake once per child. A failed
// handshake is remembered until the child is replaced.
func (s *Session) Initialize(ctx context.Context) error {
	p, err := s.ensure(ctx)
	if err != nil {
		return err
	}
	p.initMu.Lock()
	call := p.init
	owner := call == nil
	if owner {
		call = &initCall{done: make(chan struct{})}
		p.init = call
	}
	p.initMu.Unlock()

	if owner {
		// Shared by every waiter, so no single caller's ctx may cancel it.
		hctx := context.WithoutCancel(ctx)
		_, call.err = s.requestOn(hctx, p, "initialize", map[string]any{"clientInfo": s.clientInfo})
		if call.err == nil {
			call.err = s.write(p, outgoingNotification{Method: "initialized"})
		}
		if call.err != nil {
			s.logger.Warn("appserver_initialize_failed", logging.F("error", call.err))
		}
		close(call.done)
	}

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) respond(p *childProcess, id json.RawMessage, result any) error {
	return s.write(p, outgoingResponse{ID: id, Result: result})
}

func (s *Session) write(p *childProcess, payload any) error {
	line, err := encodeLine(payload)
	if err != nil {
		return &ProtocolError{Message: "failed to encode codex app-server message", Cause: err}
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.conn.Stdin.Write(line); err != nil {
		return &ProcessError{Message: "failed to write to codex app-server: " + err.Error(), Cause: err}
	}
	return nil
}

func (s *Session) forget(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Close stops the child. Pending requests fail once it has exited and every
// later call returns ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	p := s.proc
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	if p.conn.Stdin != nil {
		_ = p.conn.Stdin.Close()
	}
	if p.conn.Kill != nil {
		_ = p.conn.Kill()
	}
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		s.logger.Warn("appserver_close_timeout")
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; b.limit > 0 && over > 0 {
		b.buf = append([]byte{}, b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
