// Package streamjson is the Streaming JSON Assembler (C1): an incremental
// parser that reconstructs a single top-level JSON value from a model's
// byte stream, tolerating SSE `data:` framing, split multibyte UTF-8
// sequences, and leading junk ahead of the real value.
package streamjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
)

// Diagnostic values returned by TryGetNext on failure.
const (
	DiagIncomplete         = "incomplete"
	DiagNoJSONStart        = "no-json-start"
	DiagMismatchedRootKind = "mismatched-root-kind"
	DiagNoValidJSONFound   = "no-valid-json-found"
)

// SSEParseFailed builds the "sse-json-parse-failed: …" diagnostic, keeping
// the underlying parse error visible to callers/logs.
func SSEParseFailed(err error) string {
	return "sse-json-parse-failed: " + err.Error()
}

// DefaultMaxBytes is the default buffer capacity (256 KiB).
const DefaultMaxBytes = 256 * 1024

// Assembler is a bounded, incremental JSON-value extractor. It is safe for
// concurrent use; Append and TryGetNext each take the internal lock.
type Assembler struct {
	mu         sync.Mutex
	buf        []byte
	maxBytes   int
	overflowed bool
}

// New returns an Assembler with the given buffer ceiling. A maxBytes <= 0
// uses DefaultMaxBytes.
func New(maxBytes int) *Assembler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Assembler{maxBytes: maxBytes}
}

// Append extends the buffer with data. Once the buffer has overflowed,
// further appends are no-ops.
func (a *Assembler) Append(data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.overflowed {
		return
	}
	if len(a.buf)+len(data) > a.maxBytes {
		a.overflowed = true
		return
	}
	a.buf = append(a.buf, data...)
}

// HasOverflowed reports whether the buffer ceiling was ever hit.
func (a *Assembler) HasOverflowed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overflowed
}

// TryGetNext attempts to extract the next complete top-level JSON value
// from the buffer. On success it returns the parsed value, its raw source
// text, and ok=true; the consumed bytes are removed from the buffer. On
// failure it returns a diagnostic string and ok=false; the buffer is left
// untouched except in the SSE case, where a malformed event is always
// consumed (diagnostic sse-json-parse-failed).
func (a *Assembler) TryGetNext() (value any, rawText string, diagnostic string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if idx, sepLen := findSSETerminator(a.buf); idx >= 0 {
		return a.consumeSSEEvent(idx, sepLen)
	}
	return a.consumeNonSSE()
}

// findSSETerminator returns the index of the first blank-line terminator
// ("\n\n" or "\r\n\r\n") in buf and its length, or (-1, 0) if none is
// present yet.
func findSSETerminator(buf []byte) (idx, sepLen int) {
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
		return i, 4
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 {
		return i, 2
	}
	return -1, 0
}

func (a *Assembler) consumeSSEEvent(idx, sepLen int) (value any, rawText, diagnostic string, ok bool) {
	event := a.buf[:idx]
	consumedLen := idx + sepLen

	var dataLines []string
	for _, line := range strings.Split(string(event), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		content := strings.TrimPrefix(line, "data:")
		content = strings.TrimPrefix(content, " ")
		dataLines = append(dataLines, content)
	}
	raw := strings.Join(dataLines, "")

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		a.buf = a.buf[consumedLen:]
		return nil, "", SSEParseFailed(err), false
	}

	a.buf = a.buf[consumedLen:]
	return v, raw, "", true
}

var startBytes = map[byte]bool{
	'{': true, '[': true, '"': true, '-': true,
	't': true, 'f': true, 'n': true,
	'0': true, '1': true, '2': true, '3': true, '4': true,
	'5': true, '6': true, '7': true, '8': true, '9': true,
}

func isStartByte(b byte) bool { return startBytes[b] }

type rootKind int

const (
	kindObject rootKind = iota
	kindArray
	kindString
	kindNumber
	kindBool
	kindNull
)

func expectedKind(b byte) rootKind {
	switch {
	case b == '{':
		return kindObject
	case b == '[':
		return kindArray
	case b == '"':
		return kindString
	case b == 't' || b == 'f':
		return kindBool
	case b == 'n':
		return kindNull
	default:
		return kindNumber
	}
}

func actualKind(v any) rootKind {
	switch v.(type) {
	case map[string]any:
		return kindObject
	case []any:
		return kindArray
	case string:
		return kindString
	case bool:
		return kindBool
	case nil:
		return kindNull
	default:
		return kindNumber
	}
}

func hasMatchingClose(buf []byte, start int) bool {
	closeByte := byte('}')
	if buf[start] == '[' {
		closeByte = ']'
	}
	return bytes.IndexByte(buf[start+1:], closeByte) >= 0
}

func (a *Assembler) consumeNonSSE() (value any, rawText, diagnostic string, ok bool) {
	sawMismatch := false
	sawAnyCandidate := false

	idx := 0
	for idx < len(a.buf) {
		if !isStartByte(a.buf[idx]) {
			idx++
			continue
		}
		sawAnyCandidate = true
		start := a.buf[idx]

		if start == '{' || start == '[' {
			if !hasMatchingClose(a.buf, idx) {
				return nil, "", DiagIncomplete, false
			}
		}

		dec := json.NewDecoder(bytes.NewReader(a.buf[idx:]))
		var v any
		err := dec.Decode(&v)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, "", DiagIncomplete, false
			}
			// Syntax error: this candidate start was not real JSON; look
			// for the next one.
			idx++
			continue
		}

		if actualKind(v) != expectedKind(start) {
			sawMismatch = true
			idx++
			continue
		}

		consumed := idx + int(dec.InputOffset())
		if k := actualKind(v); k != kindObject && k != kindArray && k != kindString &&
			consumed < len(a.buf) && !strings.ContainsRune(" \t\r\n,]}", rune(a.buf[consumed])) {
			// A number or literal running straight into other text (e.g.
			// "0xFF") is not a JSON value; look for the next candidate.
			idx++
			continue
		}
		raw := string(a.buf[idx:consumed])
		a.buf = a.buf[consumed:]
		return v, raw, "", true
	}

	if !sawAnyCandidate {
		return nil, "", DiagNoJSONStart, false
	}
	if sawMismatch {
		return nil, "", DiagMismatchedRootKind, false
	}
	return nil, "", DiagNoValidJSONFound, false
}
