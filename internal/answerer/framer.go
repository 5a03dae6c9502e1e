package answerer

import (
	"strings"
	"unicode"
)

const (
	bodyStartMarker  = "BODY_START"
	bodyEndMarker    = "BODY_END"
	notEnoughContext = "NOT_ENOUGH_CONTEXT="
	lookaheadSize    = 15
)

type framerState int

const (
	framerPreBody framerState = iota
	framerBody
	framerPostBody
)

// bodyFramer is the streaming state machine that holds back a 15-char
// lookahead window so a BODY_END marker straddling two stream deltas is
// never forwarded to the client.
type bodyFramer struct {
	state     framerState
	buffer    string
	afterBody string
}

// Feed appends one delta and returns the portion of the body now safe to
// forward to the client, or "" if nothing is ready yet.
func (f *bodyFramer) Feed(delta string) string {
	if f.state == framerPostBody {
		f.afterBody += delta
		return ""
	}
	f.buffer += delta

	if f.state == framerPreBody {
		idx := strings.Index(f.buffer, bodyStartMarker)
		if idx < 0 {
			return ""
		}
		f.state = framerBody
		f.buffer = f.buffer[idx+len(bodyStartMarker):]
	}

	if idx := strings.Index(f.buffer, bodyEndMarker); idx >= 0 {
		body := strings.TrimRightFunc(f.buffer[:idx], unicode.IsSpace)
		f.afterBody = f.buffer[idx+len(bodyEndMarker):]
		f.buffer = ""
		f.state = framerPostBody
		return body
	}

	if len(f.buffer) > lookaheadSize {
		toSend := f.buffer[:len(f.buffer)-lookaheadSize]
		f.buffer = f.buffer[len(f.buffer)-lookaheadSize:]
		return toSend
	}
	return ""
}

// NeedsMoreContext parses NOT_ENOUGH_CONTEXT= from whatever followed
// BODY_END. Absent or unparseable, it defaults to false.
func (f *bodyFramer) NeedsMoreContext() bool {
	idx := strings.Index(f.afterBody, notEnoughContext)
	if idx < 0 {
		return false
	}
	value := strings.ToLower(strings.TrimSpace(f.afterBody[idx+len(notEnoughContext):]))
	return strings.HasPrefix(value, "true")
}
