package modem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"i4.energy/across/vibralarm/at"
)

// MaxLineLength is the longest response line the scanner accepts.
const MaxLineLength = 4096

const (
	simPollInterval = 500 * time.Millisecond
	simReadyTimeout = 30 * time.Second
	urcBuffer       = 100
)

// Modem is a GSM modem driven by AT commands. All transport I/O after
// initialization goes through Loop, so commands, calls and messages may be
// issued from any goroutine.
type Modem struct {
	transport Transport
	// scanner frames transport output. It is shared by the init sequence
	// and Loop so bytes read ahead during init are not lost.
	scanner *bufio.Scanner
	config  Config
	log     *zap.SugaredLogger

	closed      atomic.Bool
	loopRunning atomic.Bool

	urcChan  chan at.Indication
	commands chan *commandRequest
	// session is held by the owner of an exclusive command sequence
	session chan struct{}

	// loopCtx is cancelled by Close
	loopCtx    context.Context
	loopCancel context.CancelFunc
}

// commandRequest is one AT command handed to the Loop.
type commandRequest struct {
	cmd      string
	respChan chan commandResponse
	ctx      context.Context
	// noReply requests are finished as soon as they are written.
	noReply bool
}

type commandResponse struct {
	response string
	err      error
}

// New dials the transport and runs the initialization sequence: echo off,
// verbose errors, SIM unlock, text mode and the call and message
// indications. Loop must be started before issuing commands.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("dial: %w", ErrNotInitialized)
	}

	m := &Modem{
		config:    config,
		log:       config.logger,
		transport: transport,
		scanner:   newScanner(transport),
		urcChan:   make(chan at.Indication, urcBuffer),
		commands:  make(chan *commandRequest),
		session:   make(chan struct{}, 1),
	}
	m.loopCtx, m.loopCancel = context.WithCancel(ctx)

	initCtx, cancel := context.WithTimeout(ctx, config.initTimeout)
	defer cancel()

	if err := m.init(initCtx); err != nil {
		transport.Close()
		m.loopCancel()
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), MaxLineLength)
	scanner.Split(at.Splitter)
	return scanner
}

func scanErr(err error) error {
	if errors.Is(err, bufio.ErrTooLong) {
		return ErrLineTooLong
	}
	return err
}

// reply accumulates the lines answering one command.
type reply []string

func (r reply) text() string {
	return strings.Join(r, "\n")
}

// result closes the reply with its final line. Anything other than OK is
// reported as ErrRejected with the modem's wording.
func (r reply) result(final string) (string, error) {
	r = append(r, final)
	if final == at.OK {
		return r.text(), nil
	}
	return r.text(), fmt.Errorf("%w: %s", ErrRejected, final)
}

// loopState is the Loop's view of the command in flight and of an
// indication still waiting for its text line.
type loopState struct {
	m     *Modem
	cmd   *commandRequest
	lines reply

	pending   *at.Indication
	bodyTimer <-chan time.Time
}

func (s *loopState) finish(resp commandResponse) {
	if s.cmd != nil {
		s.cmd.respChan <- resp
	}
	s.cmd = nil
	s.lines = nil
}

func (s *loopState) start(req *commandRequest) {
	if s.cmd != nil {
		// The previous caller gave up waiting; its response is stale.
		s.finish(commandResponse{err: fmt.Errorf("command superseded: %w", context.DeadlineExceeded)})
	}
	s.cmd = req
	if err := s.m.writeCommand(req.cmd); err != nil {
		s.finish(commandResponse{err: err})
		return
	}
	if req.noReply {
		s.finish(commandResponse{})
	}
}

func (s *loopState) dropPending() {
	s.m.log.Warnw("Dropping indication without text line", "line", s.pending.Line)
	s.pending, s.bodyTimer = nil, nil
}

// line handles one non-empty line read from the modem. Indications may
// arrive at any time, even in the middle of a command response.
func (s *loopState) line(token string) {
	if s.pending != nil {
		s.pending.Body = token
		s.m.dispatch(*s.pending)
		s.pending, s.bodyTimer = nil, nil
		return
	}

	switch at.Classify(token) {
	case at.TypeURC:
		ind := at.Indication{Kind: at.ClassifyURC(token), Line: token}
		if at.TrailingLines(ind.Kind) > 0 {
			s.pending = &ind
			s.bodyTimer = time.After(s.m.config.bodyTimeout)
			return
		}
		s.m.dispatch(ind)
		return

	case at.TypeFinal:
		if s.cmd == nil {
			return
		}
		response, err := s.lines.result(token)
		s.finish(commandResponse{response: response, err: err})
		return

	case at.TypePrompt:
		// The prompt ends the first half of a send; the caller writes the text.
		if s.cmd != nil {
			s.lines = append(s.lines, token)
			s.finish(commandResponse{response: s.lines.text()})
		}
		return

	case at.TypeData:
		if s.cmd != nil {
			s.lines = append(s.lines, token)
		}
	}

	if s.cmd != nil && s.cmd.ctx.Err() != nil {
		s.finish(commandResponse{err: fmt.Errorf("command timeout: %w", s.cmd.ctx.Err())})
	}
}

// Loop owns the transport after New. It writes queued commands, frames and
// classifies every line read back, answers the waiting caller on the final
// result and publishes indications on URC, attaching the text line that
// follows a +CMT push.
//
// Loop must run exactly once per Modem. It returns when ctx is cancelled,
// the modem is closed or the transport fails.
//
//	m, err := modem.New(ctx, config)
//	if err != nil {
//		return err
//	}
//	go m.Loop(ctx)
//
//	err = m.SendSMS(ctx, "+34600111222", "hello")
func (m *Modem) Loop(ctx context.Context) error {
	if !m.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer m.loopRunning.Store(false)

	tokens := make(chan string, 10)
	scanErrs := make(chan error, 1)

	go func() {
		defer close(tokens)
		for m.scanner.Scan() {
			token := m.scanner.Text()
			if token == "" {
				continue
			}
			select {
			case tokens <- token:
			case <-ctx.Done():
				return
			}
		}
		if err := m.scanner.Err(); err != nil {
			select {
			case scanErrs <- scanErr(err):
			case <-ctx.Done():
			}
		}
	}()

	s := &loopState{m: m}

	for {
		select {
		case <-ctx.Done():
			s.finish(commandResponse{err: ctx.Err()})
			return ctx.Err()

		case <-m.loopCtx.Done():
			s.finish(commandResponse{err: ErrAlreadyClosed})
			return m.loopCtx.Err()

		case req := <-m.commands:
			s.start(req)

		case <-s.bodyTimer:
			s.dropPending()

		case token, ok := <-tokens:
			if !ok {
				// The reader queues its error before closing tokens.
				select {
				case err := <-scanErrs:
					s.finish(commandResponse{err: fmt.Errorf("read error: %w", err)})
					return fmt.Errorf("scanner error: %w", err)
				default:
				}
				s.finish(commandResponse{err: io.EOF})
				return io.EOF
			}
			m.log.Debugw("AT<", "line", token)
			s.line(token)

		case err := <-scanErrs:
			s.finish(commandResponse{err: fmt.Errorf("read error: %w", err)})
			return fmt.Errorf("scanner error: %w", err)
		}
	}
}

func (m *Modem) dispatch(ind at.Indication) {
	select {
	case m.urcChan <- ind:
	default:
		m.log.Warnw("Indication queue full, dropping", "kind", ind.Kind, "line", ind.Line)
	}
}

// URC delivers indications from the modem: rings, caller IDs, tones and
// messages. It is buffered; indications are dropped when it is full.
func (m *Modem) URC() <-chan at.Indication {
	return m.urcChan
}

// Done is closed when the modem is closed.
func (m *Modem) Done() <-chan struct{} {
	return m.loopCtx.Done()
}

// Close stops the Loop and closes the transport. A closed Modem cannot be
// reused; a second Close returns ErrAlreadyClosed.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	m.loopCancel()
	return m.transport.Close()
}

func (m *Modem) writeCommand(cmd string) error {
	m.log.Debugw("AT>", "cmd", cmd)
	if _, err := m.transport.Write([]byte(strings.TrimSpace(cmd) + at.CR)); err != nil {
		return fmt.Errorf("write command %q: %w", cmd, err)
	}
	return nil
}

// withCommandTimeout bounds ctx by the per-command timeout unless it
// already carries a deadline.
func (m *Modem) withCommandTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || m.config.atTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.config.atTimeout)
}

func (m *Modem) init(ctx context.Context) error {
	for _, step := range []struct{ cmd, what string }{
		{at.CmdAt, "modem not responding"},
		{at.CmdEchoOff, "could not disable echo"},
		{at.CmdVerboseErrors, "could not enable verbose errors"},
	} {
		if err := m.expectOkDirect(ctx, step.cmd); err != nil {
			return fmt.Errorf("%s: %w", step.what, err)
		}
	}

	if err := m.unlockSIM(ctx); err != nil {
		return err
	}

	for _, step := range []struct{ cmd, what string }{
		{at.CmdSetTextMode, "set SMS text mode"},
		{at.CmdNewMsgIndex, "enable new message indications"},
		{at.CmdCallerID, "enable caller identification"},
		{at.CmdToneDetect, "enable tone detection"},
	} {
		if err := m.expectOkDirect(ctx, step.cmd); err != nil {
			return fmt.Errorf("%s: %w", step.what, err)
		}
	}

	return nil
}

// unlockSIM enters the configured PIN when the SIM asks for one and waits
// for it to become ready.
func (m *Modem) unlockSIM(ctx context.Context) error {
	status, err := m.execDirect(ctx, at.CmdSimStatus)
	if err != nil {
		return fmt.Errorf("query SIM status: %w", err)
	}

	switch {
	case strings.Contains(status, at.SimReady):
		return nil

	case strings.Contains(status, at.SimPin):
		if m.config.simPIN == "" {
			return ErrSIMPinRequired
		}
		if err := m.expectOkDirect(ctx, fmt.Sprintf(`AT+CPIN="%s"`, m.config.simPIN)); err != nil {
			return fmt.Errorf("enter SIM PIN: %w", err)
		}
		return m.waitForSIMReady(ctx)

	default:
		return fmt.Errorf("unsupported SIM state: %q", status)
	}
}

// exec queues cmd on the Loop and waits for its response.
func (m *Modem) exec(ctx context.Context, cmd string) (string, error) {
	return m.submit(ctx, &commandRequest{cmd: cmd})
}

// writeOnly queues cmd on the Loop and returns once it is written. A reply
// the modem may still send is ignored.
func (m *Modem) writeOnly(ctx context.Context, cmd string) error {
	_, err := m.submit(ctx, &commandRequest{cmd: cmd, noReply: true})
	return err
}

func (m *Modem) submit(ctx context.Context, req *commandRequest) (string, error) {
	if m.closed.Load() {
		return "", ErrAlreadyClosed
	}

	ctx, cancel := m.withCommandTimeout(ctx)
	defer cancel()

	req.respChan = make(chan commandResponse, 1)
	req.ctx = ctx

	select {
	case m.commands <- req:
	case <-ctx.Done():
		return "", fmt.Errorf("command cancelled before sending: %w", ctx.Err())
	case <-m.loopCtx.Done():
		return "", ErrAlreadyClosed
	}

	select {
	case resp := <-req.respChan:
		return resp.response, resp.err
	case <-ctx.Done():
		return "", fmt.Errorf("command timeout: %w", ctx.Err())
	}
}

// execDirect runs cmd on the transport without the Loop. It is only used
// by the init sequence; indications read meanwhile are discarded.
func (m *Modem) execDirect(ctx context.Context, cmd string) (string, error) {
	if m.closed.Load() {
		return "", ErrAlreadyClosed
	}
	if m.transport == nil {
		return "", ErrNotInitialized
	}

	ctx, cancel := m.withCommandTimeout(ctx)
	defer cancel()

	if err := m.writeCommand(cmd); err != nil {
		return "", err
	}

	var lines reply
	for {
		if err := ctx.Err(); err != nil {
			return lines.text(), err
		}
		if !m.scanner.Scan() {
			if err := m.scanner.Err(); err != nil {
				return lines.text(), fmt.Errorf("read error: %w", scanErr(err))
			}
			return lines.text(), io.EOF
		}

		token := m.scanner.Text()
		if token == "" {
			continue
		}
		m.log.Debugw("AT<", "line", token)

		switch at.Classify(token) {
		case at.TypeFinal:
			return lines.result(token)
		case at.TypePrompt:
			return append(lines, token).text(), nil
		case at.TypeData:
			lines = append(lines, token)
		}
	}
}

func (m *Modem) expectOkDirect(ctx context.Context, cmd string) error {
	resp, err := m.execDirect(ctx, cmd)
	if err != nil {
		return err
	}
	if !strings.Contains(resp, at.OK) {
		return fmt.Errorf("unexpected response: %q", resp)
	}
	return nil
}

// waitForSIMReady polls the SIM status after a PIN was entered, until it
// reports ready or simReadyTimeout elapses.
func (m *Modem) waitForSIMReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, simReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(simPollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("SIM not ready after %d checks: %w", attempt-1, ctx.Err())
		case <-ticker.C:
		}

		resp, err := m.execDirect(ctx, at.CmdSimStatus)
		switch {
		case errors.Is(err, ErrAlreadyClosed), errors.Is(err, ErrNotInitialized):
			return fmt.Errorf("SIM status check failed: %w", err)
		case err == nil && strings.Contains(resp, at.SimReady):
			return nil
		}
	}
}
