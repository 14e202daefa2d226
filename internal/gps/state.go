package gps

import (
	"log/slog"
	"sync"

	"github.com/relabs-tech/nmea_injector/internal/sentence"
)

// State holds the latest known topside position and heading.
//
// One mutex guards the whole aggregate so a Snapshot never mixes fields from
// two different updates. The lock is held only while copying fields; logging
// happens after it is released.
type State struct {
	mu            sync.RWMutex
	current       Snapshot
	positionReady bool
	headingReady  bool

	logger *slog.Logger
}

// NewState returns an empty, not-ready State. A nil logger uses slog.Default().
func NewState(logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{logger: logger}
}

// ApplyPositionFix copies the GGA fields into the state. The first call flips
// the position-ready flag.
func (s *State) ApplyPositionFix(fix sentence.PositionFix) {
	s.mu.Lock()
	first := !s.positionReady
	s.positionReady = true
	s.current.FixQuality = fix.FixQuality
	s.current.HDOP = fix.HDOP
	s.current.Latitude = fix.Latitude
	s.current.Longitude = fix.Longitude
	s.current.NumSats = fix.Satellites
	s.mu.Unlock()

	if first {
		s.logger.Info("got first position fix",
			"lat", fix.Latitude, "lon", fix.Longitude,
			"fix_quality", fix.FixQuality, "numsats", fix.Satellites, "hdop", fix.HDOP)
	}
}

// ApplyHeading stores the heading as the orientation. The first call flips
// the heading-ready flag.
func (s *State) ApplyHeading(h sentence.Heading) {
	s.mu.Lock()
	first := !s.headingReady
	s.headingReady = true
	s.current.Orientation = h.Degrees
	s.mu.Unlock()

	if first {
		s.logger.Info("got first heading", "type", string(h.Type), "degrees", h.Degrees)
	}
}

// Snapshot returns a copy of the current values. ok is false until both a
// position fix and a heading have been applied; the gate never closes again.
func (s *State) Snapshot() (snap Snapshot, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.positionReady || !s.headingReady {
		return Snapshot{}, false
	}
	return s.current, true
}

// Ready reports the two readiness flags.
func (s *State) Ready() (position, heading bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positionReady, s.headingReady
}
