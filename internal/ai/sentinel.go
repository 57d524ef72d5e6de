package ai

import "strings"

// SentinelScanner watches a chunked text stream for ErrorSentinel. The
// sentinel may sit anywhere in a chunk or be split across chunks, so text
// that could be the start of one is held back until the next chunk decides.
type SentinelScanner struct {
	held    string
	after   string
	tripped bool
}

// Feed consumes one chunk and returns the text that is safe to pass on.
// Once the sentinel is seen, Feed reports true and the text following it is
// available from After; later calls pass nothing through.
func (s *SentinelScanner) Feed(text string) (string, bool) {
	if s.tripped {
		s.after += text
		return "", true
	}

	buf := s.held + text
	if i := strings.Index(buf, ErrorSentinel); i >= 0 {
		s.tripped = true
		s.held = ""
		s.after = buf[i+len(ErrorSentinel):]
		return buf[:i], true
	}

	k := partialSentinel(buf)
	s.held = buf[len(buf)-k:]
	return buf[:len(buf)-k], false
}

// Flush releases the held-back tail at a clean end of stream.
func (s *SentinelScanner) Flush() string {
	out := s.held
	s.held = ""
	return out
}

// After is the text that followed the sentinel, normally the error message.
func (s *SentinelScanner) After() string { return s.after }

// partialSentinel is the length of the longest suffix of s that is a proper
// prefix of ErrorSentinel.
func partialSentinel(s string) int {
	for k := min(len(ErrorSentinel)-1, len(s)); k > 0; k-- {
		if strings.HasSuffix(s, ErrorSentinel[:k]) {
			return k
		}
	}
	return 0
}
