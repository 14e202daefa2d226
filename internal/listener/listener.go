// Package listener receives NMEA datagrams over UDP and applies the
// classified sentences to the shared position state.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/nmea_injector/internal/gps"
	"github.com/relabs-tech/nmea_injector/internal/sentence"
)

const (
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultBufferSize  = 4096

	separator = "\r\n"
)

type Config struct {
	// Addr is the local host:port to bind, e.g. "127.0.0.1:27000".
	Addr string
	// ReadTimeout bounds each receive so cancellation is noticed promptly.
	ReadTimeout time.Duration
	// BufferSize is the largest datagram accepted; longer ones are truncated.
	BufferSize int
}

// Stats are running counters, safe to read while the listener runs.
type Stats struct {
	Packets      uint64 `json:"packets"`
	Sentences    uint64 `json:"sentences"`
	ParseErrors  uint64 `json:"parse_errors"`
	Unrecognized uint64 `json:"unrecognized"`
	Positions    uint64 `json:"positions"`
	Headings     uint64 `json:"headings"`
}

type Listener struct {
	conn        *net.UDPConn
	classifier  *sentence.Classifier
	state       *gps.State
	readTimeout time.Duration
	bufSize     int
	logger      *slog.Logger

	packets      atomic.Uint64
	sentences    atomic.Uint64
	parseErrors  atomic.Uint64
	unrecognized atomic.Uint64
	positions    atomic.Uint64
	headings     atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// Listen binds the UDP socket. A bind failure is returned immediately; the
// caller cannot provide any service without the socket.
func Listen(cfg Config, classifier *sentence.Classifier, state *gps.State, logger *slog.Logger) (*Listener, error) {
	if classifier == nil || state == nil {
		return nil, errors.New("listener: classifier and state are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.Addr, err)
	}

	l := &Listener{
		conn:        conn,
		classifier:  classifier,
		state:       state,
		readTimeout: cfg.ReadTimeout,
		bufSize:     cfg.BufferSize,
		logger:      logger.With("component", "listener"),
	}
	l.logger.Info("listening for NMEA messages", "addr", conn.LocalAddr().String(),
		"heading", string(classifier.HeadingType()))
	return l, nil
}

// Addr is the bound local address.
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Run receives datagrams until ctx is cancelled or the socket is closed.
// Neither case is an error.
func (l *Listener) Run(ctx context.Context) error {
	buf := make([]byte, l.bufSize)
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("context done, quitting")
			return nil
		default:
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(l.readTimeout)); err != nil {
			l.logger.Debug("socket closed, quitting", "err", err)
			return nil
		}
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				l.logger.Debug("socket closed, quitting")
			} else {
				l.logger.Warn("receive failed, quitting", "err", err)
			}
			return nil
		}
		l.handlePacket(buf[:n])
	}
}

// Close closes the socket, unblocking Run. Safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

func (l *Listener) Stats() Stats {
	return Stats{
		Packets:      l.packets.Load(),
		Sentences:    l.sentences.Load(),
		ParseErrors:  l.parseErrors.Load(),
		Unrecognized: l.unrecognized.Load(),
		Positions:    l.positions.Load(),
		Headings:     l.headings.Load(),
	}
}

// handlePacket splits a datagram of CRLF-joined sentences and applies each
// one independently. A bad fragment never stops the rest of the packet.
//
// <sentence><cr><lf><sentence><cr><lf>...
func (l *Listener) handlePacket(packet []byte) {
	l.packets.Add(1)
	for _, frag := range strings.Split(string(packet), separator) {
		if strings.TrimSpace(frag) == "" {
			continue
		}
		l.sentences.Add(1)

		s, err := l.classifier.Classify(frag)
		if err != nil {
			l.parseErrors.Add(1)
			l.logger.Warn("discarding sentence", "err", err)
			continue
		}
		l.logger.Debug("sentence", "raw", frag)

		switch v := s.(type) {
		case sentence.PositionFix:
			l.positions.Add(1)
			l.state.ApplyPositionFix(v)
		case sentence.Heading:
			l.headings.Add(1)
			l.state.ApplyHeading(v)
		case sentence.Unrecognized:
			l.unrecognized.Add(1)
			l.logger.Debug("ignoring sentence", "type", v.Type)
		}
	}
}
