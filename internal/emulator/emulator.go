package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// Sink is one output the packets are written to.
type Sink struct {
	Name string
	W    io.Writer
}

type Emulator struct {
	gen      *Generator
	interval time.Duration
	sinks    []Sink
	logger   *slog.Logger
	now      func() time.Time
}

func New(gen *Generator, interval time.Duration, logger *slog.Logger, sinks ...Sink) *Emulator {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Emulator{
		gen:      gen,
		interval: interval,
		sinks:    sinks,
		logger:   logger.With("component", "emulator"),
		now:      time.Now,
	}
}

// Run emits one packet per interval until ctx is cancelled. Write errors are
// logged; a receiver that is not up yet must not stop the emulator.
func (e *Emulator) Run(ctx context.Context) error {
	if len(e.sinks) == 0 {
		return errors.New("emulator: no outputs")
	}
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.Emit()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Emit writes a single packet to every sink.
func (e *Emulator) Emit() {
	sentences := e.gen.Next(e.now())
	pkt := Packet(sentences)
	for _, s := range e.sinks {
		if _, err := s.W.Write(pkt); err != nil {
			e.logger.Warn("write failed", "sink", s.Name, "err", err)
		}
	}
	e.logger.Debug("sent", "sentences", sentences)
}

// DialUDP returns a UDP socket connected to addr.
func DialUDP(addr string) (*net.UDPConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// OpenSerial opens a serial port 8N1 for writing sentences, as a wired GPS
// would emit them.
func OpenSerial(portName string, baud int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	return port, nil
}
