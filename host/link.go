package host

import (
	"bufio"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// ConnectionState tracks one physical link.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// to allow testing
var linkOpen = func(name string, baud int) (io.ReadWriteCloser, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// Link owns the serial connection to the board: it parses the inbound
// stream, reconnects on failure and carries outbound commands.
type Link struct {
	cfg    SerialConfig
	hub    *Hub
	parser *Parser

	mu     sync.Mutex
	port   io.ReadWriteCloser
	state  ConnectionState
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLink(cfg SerialConfig, hub *Hub) *Link {
	return &Link{
		cfg:    cfg,
		hub:    hub,
		parser: NewParser(hub),
	}
}

// Connect starts the reconnect loop. A no-op while already
// connecting/connected: no second transport, no duplicate subscriptions.
func (l *Link) Connect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	done := make(chan struct{})
	l.done = done

	go func() {
		defer close(done)
		if err := retry(ctx, l); err != nil {
			log.Infof("%s: link stopped: %v", l.Name(), err)
		}
	}()
}

// Disconnect tears the link down and cancels any pending reconnect attempt.
// Safe to call in any state.
func (l *Link) Disconnect() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if err := l.Close(); err != nil {
		log.WithField("err", err).Warnf("%s: unable to close", l.Name())
	}
}

// State returns the current connection state.
func (l *Link) State() ConnectionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SendCommand writes "CMD:NAME:k=v" with a newline terminator.
func (l *Link) SendCommand(name string, params map[string]string) error {
	l.mu.Lock()
	port := l.port
	l.mu.Unlock()
	if port == nil {
		return errors.New("arduino link not connected")
	}

	parts := []string{"CMD", strings.ToUpper(name)}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	line := strings.Join(parts, ":") + "\n"

	log.WithField("cmd", strings.TrimSpace(line)).Info("sending command")
	_, err := port.Write([]byte(line))
	return errors.Wrap(err, "unable to send command")
}

// Retryable implementation driven by retry().

func (l *Link) Name() string {
	return "arduino"
}

func (l *Link) Open() error {
	l.setState(Connecting)
	port, err := linkOpen(l.cfg.Port, l.cfg.Baud)
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", l.cfg.Port)
	}

	l.mu.Lock()
	l.port = port
	l.mu.Unlock()
	l.setState(Connected)
	log.WithField("port", l.cfg.Port).Info("arduino link connected")
	return nil
}

func (l *Link) Close() error {
	l.mu.Lock()
	port := l.port
	l.port = nil
	l.mu.Unlock()
	l.setState(Disconnected)
	if port == nil {
		return nil
	}
	return port.Close()
}

func (l *Link) Start(ctx context.Context) error {
	l.mu.Lock()
	port := l.port
	l.mu.Unlock()
	if port == nil {
		return errors.New("link not open")
	}

	// a blocking serial read only unblocks when the port closes
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-stop:
		}
	}()

	scanner := bufio.NewScanner(port)
	scanner.Split(ScanTokens)
	for scanner.Scan() {
		l.parser.Dispatch(scanner.Text())
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "serial read")
	}
	return errors.New("serial stream ended")
}

func (l *Link) setState(s ConnectionState) {
	l.mu.Lock()
	changed := l.state != s
	l.state = s
	l.mu.Unlock()
	if changed {
		l.hub.Publish(TopicStatus, Status{Key: l.Name(), Value: s.String()})
	}
}
