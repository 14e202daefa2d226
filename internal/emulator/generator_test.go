package emulator

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/nmea_injector/internal/sentence"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig() Config {
	return Config{
		Latitude:   47.6075779801547,
		Longitude:  -122.34390446166833,
		Satellites: 14,
		HDOP:       3.1,
		Heading:    105.33,
		Course:     90,
		SpeedKph:   1.0,
	}
}

func TestDegMin(t *testing.T) {
	tests := []struct {
		v     float64
		width int
		want  string
	}{
		{48.1173, 2, "4807.0380"},
		{11.516666666, 3, "01131.0000"},
		{0, 2, "0000.0000"},
		{122.34390446166833, 3, "12220.6343"},
		{9.99999999, 2, "1000.0000"},
	}
	for _, tt := range tests {
		if got := degMin(tt.v, tt.width); got != tt.want {
			t.Fatalf("degMin(%v,%d)=%q want %q", tt.v, tt.width, got, tt.want)
		}
	}
}

func TestNmeaTime(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 5, 7, 250_000_000, time.UTC)
	if got := nmeaTime(ts); got != "090507.25" {
		t.Fatalf("nmeaTime=%q", got)
	}
}

func TestNext_RoundTripsThroughClassifier(t *testing.T) {
	for _, ht := range []sentence.HeadingType{sentence.HeadingMagnetic, sentence.HeadingTrue} {
		t.Run(string(ht), func(t *testing.T) {
			cfg := testConfig()
			cfg.HeadingType = ht
			cfg.Aux = true
			start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			g := NewGenerator(cfg, start)

			out := g.Next(start)
			if len(out) != 4 {
				t.Fatalf("got %d sentences, want 4: %q", len(out), out)
			}

			c := sentence.NewClassifier(ht)
			s, err := c.Classify(out[0])
			if err != nil {
				t.Fatalf("GGA: %v", err)
			}
			fix, ok := s.(sentence.PositionFix)
			if !ok {
				t.Fatalf("GGA classified as %T", s)
			}
			if math.Abs(fix.Latitude-cfg.Latitude) > 1e-5 || math.Abs(fix.Longitude-cfg.Longitude) > 1e-5 {
				t.Fatalf("fix=%+v", fix)
			}
			if fix.Satellites != 14 || fix.HDOP != 3.1 || fix.FixQuality != 1 {
				t.Fatalf("fix=%+v", fix)
			}

			s, err = c.Classify(out[1])
			if err != nil {
				t.Fatalf("heading: %v", err)
			}
			h, ok := s.(sentence.Heading)
			if !ok || h.Type != ht || math.Abs(h.Degrees-105.3) > 1e-9 {
				t.Fatalf("heading=%#v", s)
			}

			for _, aux := range out[2:] {
				s, err := c.Classify(aux)
				if err != nil {
					t.Fatalf("aux %q: %v", aux, err)
				}
				if _, ok := s.(sentence.Unrecognized); !ok {
					t.Fatalf("aux classified as %T", s)
				}
			}
		})
	}
}

func TestNext_Moves(t *testing.T) {
	cfg := testConfig()
	cfg.SpeedKph = 36 // 10 m/s
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewGenerator(cfg, start)

	lat0, lon0 := g.Position()
	g.Next(start.Add(10 * time.Second))
	lat1, lon1 := g.Position()

	// Roughly east: longitude grows, latitude barely changes.
	if lon1 <= lon0 {
		t.Fatalf("lon did not increase: %v -> %v", lon0, lon1)
	}
	if math.Abs(lat1-lat0) > math.Abs(lon1-lon0) {
		t.Fatalf("moved more north/south than east: dlat=%v dlon=%v", lat1-lat0, lon1-lon0)
	}

	// Stationary model stays put.
	cfg.SpeedKph = 0
	g = NewGenerator(cfg, start)
	g.Next(start.Add(time.Minute))
	if lat, lon := g.Position(); lat != cfg.Latitude || lon != cfg.Longitude {
		t.Fatalf("stationary model moved to %v,%v", lat, lon)
	}
}

func TestPacket(t *testing.T) {
	if Packet(nil) != nil {
		t.Fatalf("empty packet should be nil")
	}
	got := string(Packet([]string{"$A*00", "$B*00"}))
	if got != "$A*00\r\n$B*00\r\n" {
		t.Fatalf("Packet=%q", got)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_WritesPacketsToSinks(t *testing.T) {
	var a, b lockedBuffer
	e := New(NewGenerator(testConfig(), time.Now()), 10*time.Millisecond, quiet(),
		Sink{Name: "a", W: &a}, Sink{Name: "b", W: &b})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	for name, buf := range map[string]*lockedBuffer{"a": &a, "b": &b} {
		out := buf.String()
		if n := strings.Count(out, "$GPGGA"); n < 2 {
			t.Fatalf("sink %s got %d packets: %q", name, n, out)
		}
		if strings.Count(out, "$GPGGA") != strings.Count(out, "$HCHDM") {
			t.Fatalf("sink %s: unpaired sentences: %q", name, out)
		}
	}

	if err := New(NewGenerator(testConfig(), time.Now()), time.Second, quiet()).Run(ctx); err == nil {
		t.Fatalf("expected error with no sinks")
	}
}
