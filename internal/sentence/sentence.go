// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sentence classifies raw NMEA 0183 sentences into the few shapes the
// injector cares about: a position fix (GGA), a heading (HDM or HDT) or
// anything else.
package sentence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// HeadingType selects which heading sentence a deployment consumes.
// Only one is active per running instance.
type HeadingType string

const (
	HeadingMagnetic HeadingType = nmea.TypeHDM
	HeadingTrue     HeadingType = nmea.TypeHDT
)

// ParseHeadingType accepts "HDM" or "HDT" (case-insensitive).
func ParseHeadingType(s string) (HeadingType, error) {
	switch HeadingType(strings.ToUpper(strings.TrimSpace(s))) {
	case HeadingMagnetic:
		return HeadingMagnetic, nil
	case HeadingTrue:
		return HeadingTrue, nil
	}
	return "", fmt.Errorf("heading sentence must be %s or %s, got %q", HeadingMagnetic, HeadingTrue, s)
}

// Sentence is the closed set of classification results:
// PositionFix, Heading or Unrecognized.
type Sentence interface {
	sentence()
}

// PositionFix carries the GGA fields forwarded to the topside.
type PositionFix struct {
	FixQuality int
	HDOP       float64
	Latitude   float64 // signed decimal degrees
	Longitude  float64 // signed decimal degrees
	Satellites int
}

// Heading is a heading in degrees from the configured heading sentence.
type Heading struct {
	Degrees float64
	Type    HeadingType
}

// Unrecognized is a well-formed sentence of a type this deployment ignores.
type Unrecognized struct {
	Type string
}

func (PositionFix) sentence()  {}
func (Heading) sentence()      {}
func (Unrecognized) sentence() {}

// ParseError reports a malformed sentence. The whole sentence is discarded.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("sentence %q: %v", e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Classifier turns raw sentence text into a Sentence. It holds no state
// beyond the configured heading type and is safe for concurrent use.
type Classifier struct {
	heading HeadingType
}

// NewClassifier returns a Classifier consuming heading sentences of type h.
// An empty h defaults to HDM.
func NewClassifier(h HeadingType) *Classifier {
	if h == "" {
		h = HeadingMagnetic
	}
	return &Classifier{heading: h}
}

// HeadingType returns the heading sentence type this classifier consumes.
func (c *Classifier) HeadingType() HeadingType { return c.heading }

// Classify parses one sentence (no line delimiter). Sentence types other than
// GGA and the configured heading type come back as Unrecognized, not as errors.
func (c *Classifier) Classify(raw string) (Sentence, error) {
	raw = strings.TrimSpace(raw)

	dataType, err := frameType(raw)
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if dataType != nmea.TypeGGA && dataType != string(c.heading) {
		return Unrecognized{Type: dataType}, nil
	}

	s, err := nmea.Parse(raw)
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	switch m := s.(type) {
	case nmea.GGA:
		return positionFix(raw, m)
	case nmea.HDM:
		return Heading{Degrees: m.Heading, Type: HeadingMagnetic}, nil
	case nmea.HDT:
		return Heading{Degrees: m.Heading, Type: HeadingTrue}, nil
	}
	return Unrecognized{Type: s.DataType()}, nil
}

func positionFix(raw string, m nmea.GGA) (Sentence, error) {
	q, err := strconv.Atoi(strings.TrimSpace(m.FixQuality))
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("invalid fix quality %q", m.FixQuality)}
	}
	return PositionFix{
		FixQuality: q,
		HDOP:       m.HDOP,
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		Satellites: int(m.NumSatellites),
	}, nil
}

// frameType checks the start delimiter and checksum and returns the
// three-letter sentence type (talker stripped).
func frameType(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("empty sentence")
	}
	if raw[0] != '$' && raw[0] != '!' {
		return "", fmt.Errorf("missing start delimiter, got %q", raw[0])
	}
	star := strings.LastIndexByte(raw, '*')
	if star == -1 {
		return "", errors.New("missing checksum")
	}
	payload := raw[1:star]
	got, want := nmea.Checksum(payload), strings.ToUpper(raw[star+1:])
	if got != want {
		return "", fmt.Errorf("checksum mismatch: calculated %s, sentence has %s", got, want)
	}
	head, _, _ := strings.Cut(payload, ",")
	if len(head) < 3 {
		return "", fmt.Errorf("short sentence header %q", head)
	}
	return strings.ToUpper(head[len(head)-3:]), nil
}
