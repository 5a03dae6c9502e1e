package answerer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBodyFramer_IgnoresContentBeforeBodyStart(t *testing.T) {
	f := &bodyFramer{}
	assert.Equal(t, "", f.Feed("preamble that should never reach the client BODY_STA"))
	assert.Equal(t, "", f.Feed("RT hello"))
}

func TestBodyFramer_HoldsBackLookaheadWindow(t *testing.T) {
	f := &bodyFramer{}
	f.Feed("BODY_START")
	// 20 chars: 5 should be sent immediately, 15 held back.
	sent := f.Feed("01234567890123456789")
	assert.Equal(t, "01234", sent)
}

func TestBodyFramer_SplitBodyEndAcrossDeltas(t *testing.T) {
	f := &bodyFramer{}
	var forwarded string
	forwarded += f.Feed("BODY_START\n\nanswer text BODY_")
	forwarded += f.Feed("END\n\nNOT_ENOUGH_CONTEXT=false")
	assert.Equal(t, "\n\nanswer text", forwarded)
	assert.False(t, f.NeedsMoreContext())
}

func TestBodyFramer_NeverEmitsBodyEndSubstring(t *testing.T) {
	f := &bodyFramer{}
	var forwarded string
	for _, delta := range []string{"BODY_START\n\nfirst ", "chunk then BOD", "Y_END trailing junk"} {
		forwarded += f.Feed(delta)
	}
	assert.NotContains(t, forwarded, "BODY_END")
	assert.NotContains(t, forwarded, "trailing junk")
}

func TestBodyFramer_ParsesNotEnoughContextTrue(t *testing.T) {
	f := &bodyFramer{}
	f.Feed("BODY_START\n\nanswer\n\nBODY_END\n\nNOT_ENOUGH_CONTEXT=true")
	assert.True(t, f.NeedsMoreContext())
}

func TestBodyFramer_DefaultsFalseWhenMarkerMissing(t *testing.T) {
	f := &bodyFramer{}
	f.Feed("BODY_START\n\nanswer\n\nBODY_END\n\n")
	assert.False(t, f.NeedsMoreContext())
}

func TestBodyFramer_PostBodyContentNeverForwarded(t *testing.T) {
	f := &bodyFramer{}
	f.Feed("BODY_START\n\nok\n\nBODY_END")
	sent := f.Feed("NOT_ENOUGH_CONTEXT=false")
	assert.Equal(t, "", sent)
}
