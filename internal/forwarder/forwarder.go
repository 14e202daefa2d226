// Package forwarder pushes the position state to the topside at a fixed rate.
package forwarder

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/nmea_injector/internal/gps"
)

const minPeriod = time.Millisecond

// Source is read once per tick. ok is false until the state is warmed up.
type Source interface {
	Snapshot() (snap gps.Snapshot, ok bool)
}

// Sender delivers one snapshot to the topside.
type Sender interface {
	SetExternalMaster(ctx context.Context, snap gps.Snapshot) error
}

// Mirror receives every snapshot the forwarder sends, e.g. an MQTT topic.
type Mirror interface {
	Publish(snap gps.Snapshot) error
}

type Stats struct {
	Ticks     uint64 `json:"ticks"`
	Sent      uint64 `json:"sent"`
	Failed    uint64 `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

type Forwarder struct {
	source  Source
	sender  Sender
	mirrors []Mirror
	period  time.Duration
	logger  *slog.Logger

	ticks  atomic.Uint64
	sent   atomic.Uint64
	failed atomic.Uint64

	mu      sync.Mutex
	lastErr string
}

// Period converts a rate in Hz to a tick period. Zero means observe-only.
func Period(rate float64) time.Duration {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	p := time.Duration(float64(time.Second) / rate)
	if p < minPeriod {
		p = minPeriod
	}
	return p
}

// New returns a forwarder ticking at rate Hz. A rate of zero or less never
// forwards.
func New(source Source, sender Sender, rate float64, logger *slog.Logger, mirrors ...Mirror) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		source:  source,
		sender:  sender,
		mirrors: mirrors,
		period:  Period(rate),
		logger:  logger.With("component", "forwarder"),
	}
}

// Enabled is false in observe-only mode.
func (f *Forwarder) Enabled() bool { return f.period > 0 }

func (f *Forwarder) Period() time.Duration { return f.period }

// Run ticks until ctx is cancelled. Send failures are logged and never stop
// the loop or change its period. In observe-only mode Run just waits for ctx.
func (f *Forwarder) Run(ctx context.Context) error {
	if !f.Enabled() {
		f.logger.Info("forward rate is 0, not sending")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(f.period)
	defer ticker.Stop()

	f.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Tick(ctx)
		}
	}
}

// Tick performs one forward attempt and reports whether a send was made.
// A not-ready state is skipped silently.
func (f *Forwarder) Tick(ctx context.Context) bool {
	f.ticks.Add(1)

	snap, ok := f.source.Snapshot()
	if !ok {
		return false
	}

	// Let an in-flight request finish or time out on its own at shutdown.
	err := f.sender.SetExternalMaster(context.WithoutCancel(ctx), snap)
	if err != nil {
		f.failed.Add(1)
		f.setLastErr(err.Error())
		f.logger.Warn("send failed", "err", err)
	} else {
		f.sent.Add(1)
		f.logger.Debug("sent", "snapshot", snap)
	}

	for _, m := range f.mirrors {
		if err := m.Publish(snap); err != nil {
			f.logger.Warn("mirror publish failed", "err", err)
		}
	}
	return true
}

func (f *Forwarder) Stats() Stats {
	f.mu.Lock()
	lastErr := f.lastErr
	f.mu.Unlock()
	return Stats{
		Ticks:     f.ticks.Load(),
		Sent:      f.sent.Load(),
		Failed:    f.failed.Load(),
		LastError: lastErr,
	}
}

func (f *Forwarder) setLastErr(msg string) {
	f.mu.Lock()
	f.lastErr = msg
	f.mu.Unlock()
}
