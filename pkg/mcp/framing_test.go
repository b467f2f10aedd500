package mcp

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := newFrameWriter(&buf)

	require.NoError(t, w.WriteFrame([]byte(`{"a":1}`)))
	require.NoError(t, w.WriteFrame([]byte(`{"b":2}`)))

	r := newFrameReader(&buf)

	first, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(first))

	second, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(second))

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReaderToleratesUnknownHeaders(t *testing.T) {
	raw := "Content-Type: application/json\r\nContent-Length: 4\r\nX-Custom: yes\r\n\r\nabcd"
	r := newFrameReader(strings.NewReader(raw))

	payload, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(payload))
}

func TestFrameReaderMissingLength(t *testing.T) {
	r := newFrameReader(strings.NewReader("Content-Type: application/json\r\n\r\nabcd"))
	_, err := r.ReadFrame()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Content-Length")
}

func TestFrameReaderTruncatedPayload(t *testing.T) {
	r := newFrameReader(strings.NewReader("Content-Length: 100\r\n\r\nshort"))
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrameReaderRejectsOversizedFrame(t *testing.T) {
	r := newFrameReader(strings.NewReader("Content-Length: 999999999\r\n\r\n"))
	_, err := r.ReadFrame()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}
