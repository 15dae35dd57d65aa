// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader returns one chunk per Read call, then err (io.EOF by default).
type chunkReader struct {
	chunks []string
	reads  int
	err    error
	// afterRead runs after each successful read.
	afterRead func(n int)
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.reads >= len(r.chunks) {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.reads])
	r.reads++
	if r.afterRead != nil {
		r.afterRead(r.reads)
	}
	return n, nil
}

func deltaLine(s string) string {
	return `data: {"choices":[{"delta":{"content":"` + s + `"}}]}` + "\n"
}

func collect(t *testing.T, r io.Reader, stop *atomic.Bool) ([]string, Result, error) {
	t.Helper()
	var got []string
	res, err := NewDecoder(r, stop).Decode(func(d string) { got = append(got, d) })
	return got, res, err
}

// =============================================================================
// FRAMING TESTS
// =============================================================================

func TestDecode_BasicStream(t *testing.T) {
	r := &chunkReader{chunks: []string{deltaLine("Hi") + deltaLine(" there!") + "data: [DONE]\n"}}

	got, res, err := collect(t, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", " there!"}, got)
	assert.True(t, res.Done)
	assert.False(t, res.Stopped)
	assert.Equal(t, 2, res.Deltas)
}

func TestDecode_LineSplitAcrossChunks(t *testing.T) {
	full := deltaLine("Hello") + deltaLine("World")
	// Split in the middle of the first JSON object.
	r := &chunkReader{chunks: []string{full[:20], full[20:45], full[45:]}}

	got, res, err := collect(t, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", "World"}, got)
	assert.Zero(t, res.Malformed)
	assert.False(t, res.Done)
}

func TestDecode_DoneStopsMidChunk(t *testing.T) {
	r := &chunkReader{chunks: []string{
		deltaLine("a") + "data: [DONE]\n" + deltaLine("never"),
		deltaLine("never either"),
	}}

	got, res, err := collect(t, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)
	assert.True(t, res.Done)
	assert.Equal(t, 1, r.reads)
}

func TestDecode_DoneWithWhitespace(t *testing.T) {
	r := &chunkReader{chunks: []string{"data:  [DONE]  \r\n" + deltaLine("x")}}
	got, res, err := collect(t, r, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, res.Done)
}

func TestDecode_MalformedLineSkipped(t *testing.T) {
	r := &chunkReader{chunks: []string{"data: {bad json\n" + deltaLine("ok")}}

	var skipped []error
	dec := NewDecoder(r, nil)
	dec.OnMalformed = func(_ []byte, err error) { skipped = append(skipped, err) }

	var got []string
	res, err := dec.Decode(func(d string) { got = append(got, d) })
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, got)
	assert.Equal(t, 1, res.Malformed)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0], ErrMalformedFrame)
}

func TestDecode_IgnoresNonDataLines(t *testing.T) {
	r := &chunkReader{chunks: []string{
		": OPENROUTER PROCESSING\n\nevent: ping\ndata:" + `{"choices":[{"delta":{"content":"no space"}}]}` + "\n" + deltaLine("yes"),
	}}
	got, _, err := collect(t, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"yes"}, got)
}

func TestDecode_MetadataOnlyEmitsNothing(t *testing.T) {
	r := &chunkReader{chunks: []string{
		`data: {"id":"x","choices":[{"delta":{"role":"assistant"}}]}` + "\n" +
			`data: {"choices":[]}` + "\n" +
			`data: {"choices":[{"delta":{"content":""}}]}` + "\n" +
			`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n",
	}}
	got, res, err := collect(t, r, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, res.Deltas)
	assert.Zero(t, res.Malformed)
}

func TestDecode_CRLFLines(t *testing.T) {
	r := &chunkReader{chunks: []string{strings.ReplaceAll(deltaLine("crlf"), "\n", "\r\n")}}
	got, _, err := collect(t, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"crlf"}, got)
}

func TestDecode_FinalLineWithoutNewline(t *testing.T) {
	r := &chunkReader{chunks: []string{deltaLine("a"), `data: {"choices":[{"delta":{"content":"b"}}]}`}}
	got, _, err := collect(t, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestDecode_EscapedContent(t *testing.T) {
	r := &chunkReader{chunks: []string{`data: {"choices":[{"delta":{"content":"line\n` + "```go" + `\n"}}]}` + "\n"}}
	got, _, err := collect(t, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"line\n```go\n"}, got)
}

// =============================================================================
// CANCELLATION TESTS
// =============================================================================

func TestDecode_StopBetweenReads(t *testing.T) {
	var stop atomic.Bool
	r := &chunkReader{chunks: []string{deltaLine("one"), deltaLine("two"), deltaLine("three")}}
	r.afterRead = func(n int) {
		if n == 2 {
			stop.Store(true)
		}
	}

	got, res, err := collect(t, r, &stop)
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.False(t, res.Done)
	assert.Equal(t, []string{"one"}, got)
	assert.Equal(t, 2, r.reads)
}

func TestDecode_StopBetweenLines(t *testing.T) {
	var stop atomic.Bool
	r := &chunkReader{chunks: []string{deltaLine("one") + deltaLine("two") + deltaLine("three")}}

	var got []string
	res, err := NewDecoder(r, &stop).Decode(func(d string) {
		got = append(got, d)
		if d == "two" {
			stop.Store(true)
		}
	})
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestDecode_StoppedBeforeStart(t *testing.T) {
	var stop atomic.Bool
	stop.Store(true)
	r := &chunkReader{chunks: []string{deltaLine("x")}}

	got, res, err := collect(t, r, &stop)
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Empty(t, got)
	assert.Zero(t, r.reads)
}

func TestDecode_ReadErrorIsTransportError(t *testing.T) {
	r := &chunkReader{chunks: []string{deltaLine("partial")}, err: errors.New("connection reset")}

	got, res, err := collect(t, r, nil)
	assert.Equal(t, []string{"partial"}, got)
	assert.Equal(t, 1, res.Deltas)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.IsNetwork())
}

func TestDecode_ReadErrorAfterStopIsClean(t *testing.T) {
	var stop atomic.Bool
	r := &chunkReader{chunks: []string{deltaLine("partial")}, err: errors.New("use of closed network connection")}
	r.afterRead = func(int) { stop.Store(true) }

	_, res, err := collect(t, r, &stop)
	require.NoError(t, err)
	assert.True(t, res.Stopped)
}
