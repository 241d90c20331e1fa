package sse

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(d *Decoder, input string) []string {
	var got []string
	for _, payload := range d.Feed([]byte(input)) {
		got = append(got, string(payload))
	}
	return got
}

func TestDecoderBasicFrames(t *testing.T) {
	d := NewDecoder()
	got := feedAll(d, "data: {\"a\":1}\n\ndata: {\"b\":2}\n\n")
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, got)
	assert.False(t, d.Done())
}

func TestDecoderDoneSentinel(t *testing.T) {
	d := NewDecoder()
	got := feedAll(d, "data: {\"a\":1}\n\ndata: [DONE]\n\ndata: {\"after\":true}\n\n")
	assert.Equal(t, []string{`{"a":1}`}, got, "frames after [DONE] are ignored")
	assert.True(t, d.Done())

	// Feeding after the sentinel stays inert.
	assert.Nil(t, d.Feed([]byte("data: {\"more\":true}\n\n")))
	assert.True(t, d.Done())
}

func TestDecoderPartialLines(t *testing.T) {
	d := NewDecoder()
	assert.Empty(t, feedAll(d, "data: {\"part"))
	assert.Empty(t, feedAll(d, "ial\":tr"))
	got := feedAll(d, "ue}\n\n")
	assert.Equal(t, []string{`{"partial":true}`}, got)
}

func TestDecoderSplitAtEveryOffset(t *testing.T) {
	// A transcript must decode identically no matter where the network
	// splits it.
	transcript := "data: {\"a\":1}\r\n\r\ndata: {\"b\":\"x\\ny\"}\n\nignored line\n\ndata: [DONE]\n\n"
	want := []string{`{"a":1}`, `{"b":"x\ny"}`}

	for split := 0; split <= len(transcript); split++ {
		t.Run(fmt.Sprintf("split_%d", split), func(t *testing.T) {
			d := NewDecoder()
			var got []string
			got = append(got, feedAll(d, transcript[:split])...)
			got = append(got, feedAll(d, transcript[split:])...)
			require.Equal(t, want, got)
			assert.True(t, d.Done())
		})
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	transcript := "data: {\"a\":1}\n\ndata: [DONE]\n\n"
	d := NewDecoder()
	var got []string
	for i := 0; i < len(transcript); i++ {
		got = append(got, feedAll(d, transcript[i:i+1])...)
	}
	assert.Equal(t, []string{`{"a":1}`}, got)
	assert.True(t, d.Done())
}

func TestDecoderIgnoresNonDataLines(t *testing.T) {
	d := NewDecoder()
	got := feedAll(d, ": keep-alive comment\nevent: ping\n\ndata: {\"ok\":1}\n\n")
	assert.Equal(t, []string{`{"ok":1}`}, got)
}

func TestDecoderCRLF(t *testing.T) {
	d := NewDecoder()
	got := feedAll(d, "data: {\"a\":1}\r\n\r\ndata: [DONE]\r\n")
	assert.Equal(t, []string{`{"a":1}`}, got)
	assert.True(t, d.Done())
}

func TestDecoderPayloadCopiesSurviveLaterFeeds(t *testing.T) {
	d := NewDecoder()
	first := d.Feed([]byte("data: AAAA\n"))
	require.Len(t, first, 1)
	_ = d.Feed([]byte("data: BBBB\n"))
	assert.Equal(t, "AAAA", string(first[0]))
}

func TestDecoderNoTrailingNewline(t *testing.T) {
	// A final line without '\n' is never finalized; callers treat the
	// transport EOF as implicit completion.
	d := NewDecoder()
	got := feedAll(d, "data: {\"a\":1}\n\ndata: {\"trunca")
	assert.Equal(t, []string{`{"a":1}`}, got)
	assert.False(t, d.Done())
}
