// Package link owns the serial connection: it finds and opens a port, runs
// the background reader that feeds received frames to the scrollback, sends
// framed messages and closes the port.
package link

import (
	"fmt"
	"sync"
	"sync/atomic"

	"pkt.systems/pslog"

	"serialmon/pkg/logx"
	"serialmon/pkg/scrollback"
	"serialmon/pkg/serial"
)

// State is the connection state.
type State int

const (
	StateUnopened State = iota
	StateDiscovering
	StateConnected
	StateDisconnected
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateDiscovering:
		return "discovering"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Sink receives lines for the output pane. *scrollback.Store satisfies it.
type Sink interface {
	AppendKind(kind scrollback.Kind, text string, withTimestamp bool)
}

// Stats counts traffic over the lifetime of a Manager.
type Stats struct {
	FramesIn     int64
	FramesOut    int64
	BytesIn      int64
	BytesOut     int64
	DecodeErrors int64
}

// Manager owns at most one open port at a time.
type Manager struct {
	opener     serial.Opener
	cfg        serial.Config
	candidates Candidates
	sink       Sink
	log        pslog.Logger
	onState    func(State)

	mu    sync.Mutex
	state State
	port  serial.Port
	name  string
	done  chan struct{}

	// writeMu serializes writes so frames from concurrent senders never interleave.
	writeMu sync.Mutex

	framesIn, framesOut, bytesIn, bytesOut, decodeErrors atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithCandidates overrides the discovery range.
func WithCandidates(c Candidates) Option {
	return func(m *Manager) { m.candidates = c }
}

// WithLogger sets the logger.
func WithLogger(log pslog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithStateHook registers fn to be called after every state change, outside
// the manager's lock.
func WithStateHook(fn func(State)) Option {
	return func(m *Manager) { m.onState = fn }
}

// New creates a Manager. Nothing is opened until Discover.
func New(opener serial.Opener, cfg serial.Config, sink Sink, opts ...Option) *Manager {
	m := &Manager{
		opener:     opener,
		cfg:        cfg,
		candidates: DefaultCandidates(),
		sink:       sink,
		log:        logx.Discard(),
		state:      StateUnopened,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Port returns the name of the open port, or the last one opened.
func (m *Manager) Port() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Config returns the line settings ports are opened with.
func (m *Manager) Config() serial.Config {
	return m.cfg
}

// Stats returns a snapshot of the traffic counters.
func (m *Manager) Stats() Stats {
	return Stats{
		FramesIn:     m.framesIn.Load(),
		FramesOut:    m.framesOut.Load(),
		BytesIn:      m.bytesIn.Load(),
		BytesOut:     m.bytesOut.Load(),
		DecodeErrors: m.decodeErrors.Load(),
	}
}

// Discover opens a port. With an explicit name exactly one open is attempted
// and failure is fatal (KindExplicitOpen). Without one the candidate range is
// tried in order and the first port that opens is used; if none opens the
// result is a KindDiscovery error wrapping ErrNoDevice. Any port that is
// already open is closed first.
func (m *Manager) Discover(explicit string) (string, error) {
	m.shutdown()
	m.setState(StateDiscovering)

	if explicit != "" {
		port, err := m.opener.Open(explicit, m.cfg)
		if err != nil {
			m.setState(StateDisconnected)
			m.log.Error("explicit port failed to open", "port", explicit, "err", err)
			return "", &Error{Kind: KindExplicitOpen, Port: explicit, Cause: err}
		}
		m.attach(explicit, port)
		return explicit, nil
	}

	names := m.candidates.Names()
	for _, name := range names {
		port, err := m.opener.Open(name, m.cfg)
		if err != nil {
			m.log.Trace("candidate not available", "port", name, "err", err)
			continue
		}
		m.attach(name, port)
		return name, nil
	}

	m.setState(StateDisconnected)
	m.log.Warn("discovery found no device", "prefix", m.candidates.Prefix, "tried", len(names))
	return "", &Error{Kind: KindDiscovery, Cause: ErrNoDevice}
}

func (m *Manager) attach(name string, port serial.Port) {
	m.mu.Lock()
	m.port = port
	m.name = name
	m.state = StateConnected
	m.done = nil
	m.mu.Unlock()

	logx.WithPort(m.log, name).Info("connected", "settings", m.cfg.String())
	m.sink.AppendKind(scrollback.KindNotice, "Connected to port:"+name, true)
	m.notify(StateConnected)
}

// StartReadLoop starts the background reader for the open port. The reader
// stops only when the port is closed or fails.
func (m *Manager) StartReadLoop() error {
	m.mu.Lock()
	if m.state != StateConnected || m.port == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if m.done != nil {
		m.mu.Unlock()
		return nil
	}
	port, name := m.port, m.name
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	go m.readLoop(port, name, done)
	return nil
}

// Done is closed when the current reader exits. It is nil before
// StartReadLoop.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

func (m *Manager) readLoop(port serial.Port, name string, done chan struct{}) {
	defer close(done)
	log := logx.WithPort(m.log, name)
	fr := serial.NewFrameReader(port)
	fr.FlushOnIdle = m.cfg.Timeout > 0

	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			m.lost(port, name, err)
			return
		}
		m.framesIn.Add(1)
		m.bytesIn.Add(int64(len(frame)))

		text, err := serial.Decode(frame)
		if err != nil {
			m.decodeErrors.Add(1)
			derr := &Error{Kind: KindDecode, Port: name, Cause: err}
			log.Debug("frame dropped", "err", err, "len", len(frame))
			m.sink.AppendKind(scrollback.KindError, "Error! "+derr.Error(), true)
			continue
		}
		log.Trace("frame received", "len", len(frame))
		m.sink.AppendKind(scrollback.KindInbound, text, true)
	}
}

// lost handles the end of a reader. When port is still the current port the
// close was not requested locally and the operator is told.
func (m *Manager) lost(port serial.Port, name string, cause error) {
	m.mu.Lock()
	current := m.port == port
	if current {
		m.port = nil
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	if !current {
		return
	}
	port.Close()
	logx.WithPort(m.log, name).Warn("connection lost", "err", cause)
	m.sink.AppendKind(scrollback.KindError, fmt.Sprintf("Connection lost on %s: %v", name, cause), true)
	m.notify(StateDisconnected)
}

// Send frames text and writes it. Text that cannot be framed is reported and
// the connection is left alone. A failed write marks the link disconnected.
// Failures are also written to the sink.
func (m *Manager) Send(text string) error {
	m.mu.Lock()
	port, name, state := m.port, m.name, m.state
	m.mu.Unlock()
	if state != StateConnected || port == nil {
		return ErrNotConnected
	}

	data, err := serial.Encode(text)
	if err != nil {
		lerr := &Error{Kind: KindEncode, Port: name, Cause: err}
		m.sink.AppendKind(scrollback.KindError, "Error! "+lerr.Error(), true)
		return lerr
	}

	m.writeMu.Lock()
	_, err = port.Write(data)
	m.writeMu.Unlock()
	if err != nil {
		m.mu.Lock()
		current := m.port == port
		if current {
			m.port = nil
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		if current {
			port.Close()
		}

		lerr := &Error{Kind: KindWrite, Port: name, Cause: err}
		logx.WithPort(m.log, name).Error("write failed", "err", err)
		m.sink.AppendKind(scrollback.KindError, "Error! "+lerr.Error(), true)
		if current {
			m.notify(StateDisconnected)
		}
		return lerr
	}

	m.framesOut.Add(1)
	m.bytesOut.Add(int64(len(data)))
	return nil
}

// Close releases the port. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	port := m.port
	m.port = nil
	changed := m.state == StateConnected
	if changed {
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
		m.log.Debug("port closed", "port", m.Port())
	}
	if changed {
		m.notify(StateDisconnected)
	}
	return err
}

// shutdown closes any open port and waits for its reader to exit.
func (m *Manager) shutdown() {
	done := m.Done()
	if err := m.Close(); err != nil {
		m.log.Debug("close before discovery failed", "err", err)
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()
	if changed {
		m.notify(s)
	}
}

func (m *Manager) notify(s State) {
	if m.onState != nil {
		m.onState(s)
	}
}
