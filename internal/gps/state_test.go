package gps

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/relabs-tech/nmea_injector/internal/sentence"
)

func quietState() *State {
	return NewState(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var testFix = sentence.PositionFix{
	FixQuality: 1,
	HDOP:       0.9,
	Latitude:   48.1173,
	Longitude:  11.516667,
	Satellites: 8,
}

func TestState_NotReadyUntilBoth(t *testing.T) {
	orders := map[string][]func(*State){
		"position first": {
			func(s *State) { s.ApplyPositionFix(testFix) },
			func(s *State) { s.ApplyHeading(sentence.Heading{Degrees: 105.3}) },
		},
		"heading first": {
			func(s *State) { s.ApplyHeading(sentence.Heading{Degrees: 105.3}) },
			func(s *State) { s.ApplyPositionFix(testFix) },
		},
	}
	for name, steps := range orders {
		t.Run(name, func(t *testing.T) {
			st := quietState()
			if _, ok := st.Snapshot(); ok {
				t.Fatalf("fresh state reported ready")
			}
			steps[0](st)
			if _, ok := st.Snapshot(); ok {
				t.Fatalf("ready after one kind of update")
			}
			steps[1](st)
			snap, ok := st.Snapshot()
			if !ok {
				t.Fatalf("not ready after both updates")
			}
			want := Snapshot{
				FixQuality:  1,
				HDOP:        0.9,
				Latitude:    48.1173,
				Longitude:   11.516667,
				NumSats:     8,
				Orientation: 105.3,
			}
			if snap != want {
				t.Fatalf("snapshot=%+v want %+v", snap, want)
			}
		})
	}
}

func TestState_GateNeverCloses(t *testing.T) {
	st := quietState()
	st.ApplyPositionFix(testFix)
	st.ApplyHeading(sentence.Heading{Degrees: 10})
	for i := 0; i < 5; i++ {
		st.ApplyHeading(sentence.Heading{Degrees: float64(i)})
		if _, ok := st.Snapshot(); !ok {
			t.Fatalf("gate closed after update %d", i)
		}
	}
	pos, hdg := st.Ready()
	if !pos || !hdg {
		t.Fatalf("Ready()=%v,%v want true,true", pos, hdg)
	}
}

func TestState_LatestValueWins(t *testing.T) {
	st := quietState()
	st.ApplyPositionFix(testFix)
	st.ApplyHeading(sentence.Heading{Degrees: 10})
	st.ApplyHeading(sentence.Heading{Degrees: 20})
	newer := testFix
	newer.Latitude = -33.5
	st.ApplyPositionFix(newer)

	snap, _ := st.Snapshot()
	if snap.Orientation != 20 || snap.Latitude != -33.5 {
		t.Fatalf("snapshot=%+v want orientation 20 lat -33.5", snap)
	}
	if snap.COG != 0 || snap.SOG != 0 {
		t.Fatalf("cog/sog=%v/%v want 0/0", snap.COG, snap.SOG)
	}
}

// A reader must never see a latitude from one fix with the longitude of another.
func TestState_NoTornReads(t *testing.T) {
	st := quietState()
	st.ApplyHeading(sentence.Heading{Degrees: 1})
	st.ApplyPositionFix(sentence.PositionFix{Latitude: 0, Longitude: 0})

	const n = 20000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			st.ApplyPositionFix(sentence.PositionFix{
				Latitude:   float64(i),
				Longitude:  -float64(i),
				Satellites: i,
			})
		}
	}()

	for i := 0; i < n; i++ {
		snap, ok := st.Snapshot()
		if !ok {
			t.Fatalf("not ready")
		}
		if snap.Longitude != -snap.Latitude || float64(snap.NumSats) != snap.Latitude {
			t.Fatalf("torn snapshot: %+v", snap)
		}
	}
	wg.Wait()
}

func TestSnapshot_JSONFields(t *testing.T) {
	b, err := json.Marshal(Snapshot{Latitude: 1, Longitude: 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := []string{"cog", "fix_quality", "hdop", "lat", "lon", "numsats", "orientation", "sog"}
	if len(m) != len(want) {
		t.Fatalf("got %d fields %v want %d", len(m), m, len(want))
	}
	for _, k := range want {
		if _, ok := m[k]; !ok {
			t.Fatalf("missing field %q in %s", k, b)
		}
	}
}
