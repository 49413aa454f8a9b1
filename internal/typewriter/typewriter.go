// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package typewriter reveals an answer one character at a time.
//
// A Reveal is a pull iterator: each Next call exposes one more character of
// the answer and returns the full message body so far. The host paces the
// calls (the TUI with tea.Tick, the REPL with time.Sleep). Once the last
// character is out, the metadata block (confidence and sources) is appended
// in a single extra step, so it never interleaves with the typed text.
//
// # Usage
//
//	r := typewriter.New(answer, typewriter.Metadata{Confidence: "0.92"}, 12*time.Millisecond)
//	for body := range r.All() {
//	    render(body)
//	    time.Sleep(r.Speed())
//	}
package typewriter

import (
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"
)

// Prefix starts every revealed answer.
const Prefix = "Answer:\n"

// DefaultSpeed is the per-character delay.
const DefaultSpeed = 12 * time.Millisecond

// Metadata is shown after the answer.
type Metadata struct {
	// Confidence is the display form of the score. Empty omits it; callers
	// decoding a numeric zero pass "".
	Confidence string
	Sources    []string
}

// Block renders the metadata appended after the answer, or "" when there is
// nothing to show.
func (m Metadata) Block() string {
	var b strings.Builder
	if c := strings.TrimSpace(m.Confidence); c != "" {
		b.WriteString("\n\nConfidence score:\n")
		b.WriteString(Sanitize(c))
		b.WriteString("\n")
	}
	if len(m.Sources) > 0 {
		b.WriteString("\nSources:")
		for _, s := range m.Sources {
			b.WriteString("\n• ")
			b.WriteString(Sanitize(s))
		}
	}
	return b.String()
}

// =============================================================================
// SANITIZING
// =============================================================================

// units splits s into reveal steps. Each step is one input character in its
// display form.
//
// SECURITY: Answers come from a remote service. Control characters (ESC in
// particular) would let an answer drive the terminal, so they are shown as
// visible \xNN escapes instead.
func units(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	out := make([]string, 0, len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			out = append(out, "\n")
		case r == '\t':
			out = append(out, "    ")
		case r < 0x20 || r == 0x7f || (r >= 0x80 && r <= 0x9f):
			out = append(out, fmt.Sprintf(`\x%02x`, r))
		default:
			out = append(out, string(r))
		}
	}
	return out
}

// Sanitize returns s in the same display form a Reveal uses.
func Sanitize(s string) string {
	return strings.Join(units(s), "")
}

// =============================================================================
// REVEAL
// =============================================================================

// Reveal is one answer's animation. Safe for concurrent use, though a single
// owner advancing it is the expected pattern.
type Reveal struct {
	mu       sync.Mutex
	units    []string
	meta     string
	speed    time.Duration
	pos      int
	body     strings.Builder
	metaDone bool
}

// New creates a reveal positioned before the first character. A non-positive
// speed falls back to DefaultSpeed.
func New(answer string, meta Metadata, speed time.Duration) *Reveal {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	r := &Reveal{units: units(answer), meta: meta.Block(), speed: speed}
	r.body.WriteString(Prefix)
	return r
}

// Speed is the delay the host should wait between steps.
func (r *Reveal) Speed() time.Duration {
	return r.speed
}

// Next reveals one more step and returns the body so far. It returns false,
// with the final body, once nothing is left.
func (r *Reveal) Next() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos < len(r.units) {
		r.body.WriteString(r.units[r.pos])
		r.pos++
		return r.body.String(), true
	}
	if !r.metaDone {
		r.metaDone = true
		if r.meta != "" {
			r.body.WriteString(r.meta)
			return r.body.String(), true
		}
	}
	return r.body.String(), false
}

// Content returns the body revealed so far.
func (r *Reveal) Content() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

// Done reports whether the answer and metadata are fully shown.
func (r *Reveal) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos >= len(r.units) && r.metaDone
}

// Final returns the completed body without advancing.
func (r *Reveal) Final() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Prefix + strings.Join(r.units, "") + r.meta
}

// Skip jumps to the end and returns the completed body.
func (r *Reveal) Skip() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ; r.pos < len(r.units); r.pos++ {
		r.body.WriteString(r.units[r.pos])
	}
	if !r.metaDone {
		r.metaDone = true
		r.body.WriteString(r.meta)
	}
	return r.body.String()
}

// Reset rewinds to before the first character.
func (r *Reveal) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = 0
	r.metaDone = false
	r.body.Reset()
	r.body.WriteString(Prefix)
}

// All yields each successive body until the reveal is done. Breaking out
// early leaves the reveal where it stopped.
func (r *Reveal) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			body, ok := r.Next()
			if !ok || !yield(body) {
				return
			}
		}
	}
}
