// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

const (
	// DoneSentinel terminates the stream.
	DoneSentinel = "[DONE]"

	// DefaultReadSize is the size of each read from the transport.
	DefaultReadSize = 4 * 1024

	dataPrefix = "data: "
)

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is one decoded event payload.
type StreamChunk struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
			Role    string  `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Content returns choices[0].delta.content and whether it was present.
func (c *StreamChunk) Content() (string, bool) {
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == nil {
		return "", false
	}
	return *c.Choices[0].Delta.Content, true
}

// DeltaFunc receives each non-empty content delta in order.
type DeltaFunc func(delta string)

// Result summarizes a decoded stream.
type Result struct {
	// Done is set when the sentinel was seen.
	Done bool

	// Stopped is set when the stop flag ended decoding early.
	Stopped bool

	// Deltas is the number of deltas emitted.
	Deltas int

	// Malformed is the number of data lines skipped as invalid JSON.
	Malformed int
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder reads newline-delimited "data: " events from a byte stream. A line
// split across reads is buffered until its newline arrives.
type Decoder struct {
	r        io.Reader
	stop     *atomic.Bool
	readSize int
	pending  []byte

	// OnMalformed, when set, is called for every skipped line.
	OnMalformed func(line []byte, err error)
}

// NewDecoder creates a decoder over r. stop may be nil; when set to true the
// decoder returns at the next read or line boundary.
func NewDecoder(r io.Reader, stop *atomic.Bool) *Decoder {
	return &Decoder{
		r:        r,
		stop:     stop,
		readSize: DefaultReadSize,
	}
}

// SetReadSize changes the read buffer size.
func (d *Decoder) SetReadSize(n int) {
	if n > 0 {
		d.readSize = n
	}
}

// Decode consumes the stream, calling emit for each delta. It returns when
// the sentinel arrives, the input ends, the stop flag is set, or a read
// fails. A read failure after the stop flag is set is reported as Stopped,
// not as an error.
func (d *Decoder) Decode(emit DeltaFunc) (Result, error) {
	var res Result
	buf := make([]byte, d.readSize)

	for {
		if d.stopped() {
			res.Stopped = true
			return res, nil
		}

		n, err := d.r.Read(buf)
		if n > 0 {
			d.pending = append(d.pending, buf[:n]...)
			for {
				if d.stopped() {
					res.Stopped = true
					return res, nil
				}
				idx := bytes.IndexByte(d.pending, '\n')
				if idx < 0 {
					break
				}
				line := d.pending[:idx]
				d.pending = d.pending[idx+1:]
				if d.handleLine(line, emit, &res) {
					res.Done = true
					return res, nil
				}
			}
		}

		if errors.Is(err, io.EOF) {
			if len(d.pending) > 0 && !d.stopped() {
				line := d.pending
				d.pending = nil
				res.Done = d.handleLine(line, emit, &res)
			}
			return res, nil
		}
		if err != nil {
			if d.stopped() {
				res.Stopped = true
				return res, nil
			}
			return res, &TransportError{Message: "stream interrupted", Err: err}
		}
	}
}

// handleLine processes one complete line and reports whether it was the
// sentinel.
func (d *Decoder) handleLine(line []byte, emit DeltaFunc, res *Result) bool {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return false
	}
	payload := line[len(dataPrefix):]
	if string(bytes.TrimSpace(payload)) == DoneSentinel {
		return true
	}

	var chunk StreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		res.Malformed++
		if d.OnMalformed != nil {
			d.OnMalformed(line, errors.Join(ErrMalformedFrame, err))
		}
		return false
	}

	if delta, ok := chunk.Content(); ok && delta != "" {
		res.Deltas++
		if emit != nil {
			emit(delta)
		}
	}
	return false
}

func (d *Decoder) stopped() bool {
	return d.stop != nil && d.stop.Load()
}
