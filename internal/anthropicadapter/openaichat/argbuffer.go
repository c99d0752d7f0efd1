package openaichat

import (
	"encoding/json"
	"strings"
)

// DefaultMaxToolArgumentBytes caps the accumulated argument JSON of a single
// tool call. Exceeding it fails the append before further cost accrues.
const DefaultMaxToolArgumentBytes = 1 << 20 // 1 MiB

// argumentBuffer accumulates the streamed argument JSON of one tool call.
//
// It tracks an emission cursor so callers get exactly the portion appended
// since they last asked, without rescanning the accumulated buffer, and it
// scans each new fragment incrementally to detect the top-level "name" value
// as soon as it is unambiguously present, long before the JSON is complete.
//
// The buffer operates on the decoded text the transport delivered. It never
// assumes fragment boundaries align with UTF-8 sequences: structural scanning
// is byte-wise and UTF-8 continuation bytes can never be mistaken for quotes
// or escapes.
type argumentBuffer struct {
	buf      []byte
	emitted  int
	maxBytes int
	scanner  nameScanner
}

func newArgumentBuffer(maxBytes int) *argumentBuffer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxToolArgumentBytes
	}
	return &argumentBuffer{maxBytes: maxBytes}
}

// append adds a fragment to the buffer, advancing the name scanner over the
// new bytes only. It returns *BufferOverflowError when the fragment would push
// the buffer past its limit; the buffer keeps its prior contents in that case.
func (b *argumentBuffer) append(fragment string) error {
	if len(b.buf)+len(fragment) > b.maxBytes {
		return &BufferOverflowError{Limit: b.maxBytes, Attempted: len(b.buf) + len(fragment)}
	}
	b.buf = append(b.buf, fragment...)
	b.scanner.scan(fragment)
	return nil
}

// take returns everything appended since the previous take and advances the
// cursor. Cost is proportional to the returned delta, not the buffer.
func (b *argumentBuffer) take() string {
	delta := string(b.buf[b.emitted:])
	b.emitted = len(b.buf)
	return delta
}

// feed is the append+take composition: it appends the fragment and returns
// only the newly appended portion as the delta to transmit.
func (b *argumentBuffer) feed(fragment string) (string, error) {
	if err := b.append(fragment); err != nil {
		return "", err
	}
	return b.take(), nil
}

// name reports the tool name once the scanner has resolved the top-level
// "name" string value, independent of overall JSON completeness.
func (b *argumentBuffer) name() (string, bool) {
	return b.scanner.name, b.scanner.found
}

// cumulative returns the full accumulated buffer without moving the cursor.
func (b *argumentBuffer) cumulative() string {
	return string(b.buf)
}

// finish parses the accumulated buffer. An empty buffer finalizes to an empty
// object (a tool call with no arguments). Invalid JSON returns
// *ArgumentParseError carrying the raw buffer for recovery; finish itself
// never panics and append never reports parse failures.
func (b *argumentBuffer) finish() (map[string]any, error) {
	raw := string(b.buf)
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(b.buf, &parsed); err != nil {
		return nil, &ArgumentParseError{Raw: raw, Err: err}
	}
	return parsed, nil
}

// nameScanner is a minimal incremental JSON tokenizer that extracts the value
// of the top-level "name" key. It keeps just enough state (depth, string and
// escape flags, key/value position) to resume byte-wise on the next fragment,
// so each scan touches only the bytes it is given.
type nameScanner struct {
	depth    int
	inString bool
	escaped  bool
	capture  bool // collecting raw bytes of the current string
	isKey    bool // current string is a depth-1 key
	isName   bool // current string is the value of the depth-1 "name" key

	expectColon bool // a depth-1 key just closed
	keyIsName   bool // that key was "name"
	valuePos    bool // between ':' and ',' at depth 1
	pendingName bool // next depth-1 value belongs to "name"

	raw   []byte
	name  string
	found bool
}

func (s *nameScanner) scan(fragment string) {
	if s.found {
		return
	}
	for i := 0; i < len(fragment); i++ {
		c := fragment[i]
		if s.inString {
			if s.escaped {
				s.escaped = false
				if s.capture {
					s.raw = append(s.raw, c)
				}
				continue
			}
			switch c {
			case '\\':
				s.escaped = true
				if s.capture {
					s.raw = append(s.raw, c)
				}
			case '"':
				s.inString = false
				s.closeString()
			default:
				if s.capture {
					s.raw = append(s.raw, c)
				}
			}
			continue
		}
		switch c {
		case '"':
			s.inString = true
			s.raw = s.raw[:0]
			switch {
			case s.depth == 1 && !s.valuePos:
				s.isKey, s.capture = true, true
			case s.depth == 1 && s.pendingName:
				s.isName, s.capture = true, true
				s.pendingName = false
			default:
				s.capture = false
			}
		case '{', '[':
			s.depth++
			s.pendingName = false
		case '}', ']':
			s.depth--
		case ':':
			if s.expectColon {
				s.expectColon = false
				s.valuePos = true
				s.pendingName = s.keyIsName
				s.keyIsName = false
			}
		case ',':
			if s.depth == 1 {
				s.valuePos = false
				s.pendingName = false
			}
		case ' ', '\t', '\n', '\r':
			// insignificant whitespace
		default:
			// A non-string value (number, bool, null) for "name" ends detection
			// for that key; later duplicate keys could still resolve it.
			s.pendingName = false
		}
		if s.found {
			return
		}
	}
}

// closeString handles a completed string token.
func (s *nameScanner) closeString() {
	switch {
	case s.isKey:
		s.expectColon = true
		// Keys decode like values, so escaped spellings of "name" match.
		key, ok := unquoteJSONString(s.raw)
		s.keyIsName = ok && key == "name"
	case s.isName:
		if decoded, ok := unquoteJSONString(s.raw); ok {
			s.name = decoded
			s.found = true
		}
	}
	s.isKey, s.isName, s.capture = false, false, false
}

// unquoteJSONString decodes the body of a JSON string (escapes included, no
// surrounding quotes). Decoding happens once per candidate string, so scanning
// stays linear in the bytes seen.
func unquoteJSONString(raw []byte) (string, bool) {
	quoted := make([]byte, 0, len(raw)+2)
	quoted = append(quoted, '"')
	quoted = append(quoted, raw...)
	quoted = append(quoted, '"')
	var s string
	if err := json.Unmarshal(quoted, &s); err != nil {
		return "", false
	}
	return s, true
}
