// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package emulator generates a slowly moving GPS plus compass as NMEA 0183
// sentences, for testing the injector without hardware.
package emulator

import (
	"fmt"
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/nmea_injector/internal/sentence"
)

const (
	// courseVariation swings the course over ground around Config.Course.
	// The compass heading is not affected.
	courseVariation = 10.0
	// courseVariationPeriod is the period of that swing.
	courseVariationPeriod = 60 * time.Second

	earthRadiusM = 6371000.0
	kphToKnots   = 1 / 1.852

	separator = "\r\n"
)

type Config struct {
	Latitude   float64 // decimal degrees, south negative
	Longitude  float64 // decimal degrees, west negative
	Satellites int
	HDOP       float64
	// Heading is the compass heading reported in the heading sentence.
	Heading     float64
	HeadingType sentence.HeadingType
	// Course is the mean true course the position moves along.
	Course   float64
	SpeedKph float64
	// Aux adds RMC and VTG sentences to each packet.
	Aux bool
}

// Generator is a simple dead-reckoning model. It is not safe for concurrent
// use.
type Generator struct {
	cfg   Config
	start time.Time
	last  time.Time

	lat, lon float64
	course   float64
}

func NewGenerator(cfg Config, start time.Time) *Generator {
	if cfg.HeadingType == "" {
		cfg.HeadingType = sentence.HeadingMagnetic
	}
	return &Generator{
		cfg:    cfg,
		start:  start,
		last:   start,
		lat:    cfg.Latitude,
		lon:    cfg.Longitude,
		course: normDeg(cfg.Course),
	}
}

// Position is the current modeled position in decimal degrees.
func (g *Generator) Position() (lat, lon float64) { return g.lat, g.lon }

// Next advances the model to now and returns the encoded sentences for that
// instant: GGA, then the heading sentence, then RMC and VTG when enabled.
func (g *Generator) Next(now time.Time) []string {
	g.advance(now)

	utc := now.UTC()
	ts := nmeaTime(utc)
	lat, ns := nmeaLat(g.lat)
	lon, ew := nmeaLon(g.lon)

	out := []string{
		Encode(fmt.Sprintf("GPGGA,%s,%s,%s,%s,%s,1,%02d,%.1f,0.0,M,0.0,M,,",
			ts, lat, ns, lon, ew, g.cfg.Satellites, g.cfg.HDOP)),
	}

	heading := normDeg(g.cfg.Heading)
	if g.cfg.HeadingType == sentence.HeadingTrue {
		out = append(out, Encode(fmt.Sprintf("HEHDT,%.1f,T", heading)))
	} else {
		out = append(out, Encode(fmt.Sprintf("HCHDM,%.1f,M", heading)))
	}

	if g.cfg.Aux {
		knots := g.cfg.SpeedKph * kphToKnots
		out = append(out,
			Encode(fmt.Sprintf("GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,,,A",
				ts, lat, ns, lon, ew, knots, g.course, utc.Format("020106"))),
			Encode(fmt.Sprintf("GPVTG,%.1f,T,,M,%.1f,N,%.1f,K,A",
				g.course, knots, g.cfg.SpeedKph)),
		)
	}
	return out
}

// Packet joins sentences into one datagram, each terminated by CRLF.
func Packet(sentences []string) []byte {
	if len(sentences) == 0 {
		return nil
	}
	return []byte(strings.Join(sentences, separator) + separator)
}

// Encode frames a payload such as "GPGGA,..." as "$payload*hh".
func Encode(payload string) string {
	return "$" + payload + "*" + nmea.Checksum(payload)
}

func (g *Generator) advance(now time.Time) {
	dt := now.Sub(g.last).Seconds()
	if dt <= 0 {
		return
	}
	g.last = now

	phase := 2 * math.Pi * now.Sub(g.start).Seconds() / courseVariationPeriod.Seconds()
	g.course = normDeg(g.cfg.Course + courseVariation*math.Sin(phase))

	dist := g.cfg.SpeedKph / 3.6 * dt
	if dist == 0 {
		return
	}
	rad := g.course * math.Pi / 180
	latRad := g.lat * math.Pi / 180
	g.lat += (dist * math.Cos(rad) / earthRadiusM) * 180 / math.Pi
	if c := math.Cos(latRad); c > 1e-9 {
		g.lon += (dist * math.Sin(rad) / (earthRadiusM * c)) * 180 / math.Pi
	}
	g.lat = math.Max(-90, math.Min(90, g.lat))
	if g.lon > 180 {
		g.lon -= 360
	} else if g.lon < -180 {
		g.lon += 360
	}
}

func normDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// nmeaTime formats hhmmss.ss.
func nmeaTime(t time.Time) string {
	sec := float64(t.Second()) + float64(t.Nanosecond()/1e7)/100
	return fmt.Sprintf("%02d%02d%05.2f", t.Hour(), t.Minute(), sec)
}

func nmeaLat(v float64) (string, string) {
	hemi := "N"
	if v < 0 {
		hemi = "S"
	}
	return degMin(math.Abs(v), 2), hemi
}

func nmeaLon(v float64) (string, string) {
	hemi := "E"
	if v < 0 {
		hemi = "W"
	}
	return degMin(math.Abs(v), 3), hemi
}

// degMin formats decimal degrees as (d)ddmm.mmmm, rounding in whole
// ten-thousandths of a minute so 59.99999' carries into the degrees.
func degMin(v float64, degWidth int) string {
	units := int64(math.Round(v * 60 * 10000))
	deg := units / 600000
	rem := units % 600000
	return fmt.Sprintf("%0*d%02d.%04d", degWidth, deg, rem/10000, rem%10000)
}
