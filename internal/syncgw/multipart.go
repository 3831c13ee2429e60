package syncgw

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"mime"
	"net/textproto"
	"strings"
)

// ParserState is the position of a MultipartReader in the body.
type ParserState int

const (
	AwaitingBoundary ParserState = iota
	ReadingPartHeaders
	ReadingPartBody
	Done
)

func (s ParserState) String() string {
	switch s {
	case AwaitingBoundary:
		return "awaiting boundary"
	case ReadingPartHeaders:
		return "reading part headers"
	case ReadingPartBody:
		return "reading part body"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("ParserState(%d)", int(s))
	}
}

// DefaultChunkSize is the read size used when pulling from the source.
const DefaultChunkSize = 4096

// Part is one section of a multipart body.
type Part struct {
	Header map[string]string
	Body   []byte
}

// Get returns the value of the named header, matched case-insensitively.
func (p Part) Get(name string) string {
	return p.Header[textproto.CanonicalMIMEHeaderKey(name)]
}

// IsError reports whether the gateway marked this part as a per-document
// error, which it does with an error="true" Content-Type parameter.
func (p Part) IsError() bool {
	_, params, err := mime.ParseMediaType(p.Get("Content-Type"))
	return err == nil && params["error"] == "true"
}

// JSON decodes the part body into v.
func (p Part) JSON(v any) error {
	return json.Unmarshal(p.Body, v)
}

// BoundaryFromContentType returns the boundary parameter of a multipart
// Content-Type. A multipart type without a boundary yields "" so that the
// reader detects it from the body.
func BoundaryFromContentType(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("parse content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("not a multipart content type: %q", mediaType)
	}
	return params["boundary"], nil
}

// MultipartReader decodes a boundary-delimited body incrementally. It pulls
// chunks from its source only when the buffered bytes cannot advance the
// state machine, so chunk edges may fall anywhere.
//
// A MultipartReader belongs to a single response and must not be used from
// more than one goroutine.
type MultipartReader struct {
	src   io.Reader
	chunk []byte
	eof   bool

	// delim is "--" followed by the boundary; nil until detected.
	delim []byte

	state ParserState
	buf   []byte

	// searched is how far into buf the body scan has already looked.
	searched int
	current  Part
	err      error
}

// NewMultipartReader returns a reader for the body r. An empty boundary is
// detected from the first line that begins with "--".
func NewMultipartReader(r io.Reader, boundary string) *MultipartReader {
	return NewMultipartReaderSize(r, boundary, DefaultChunkSize)
}

// NewMultipartReaderSize is NewMultipartReader with an explicit read size.
func NewMultipartReaderSize(r io.Reader, boundary string, size int) *MultipartReader {
	if size <= 0 {
		size = DefaultChunkSize
	}
	mr := &MultipartReader{
		src:   r,
		chunk: make([]byte, size),
	}
	if boundary != "" {
		mr.delim = []byte("--" + boundary)
	}
	return mr
}

// State reports the current parser state.
func (mr *MultipartReader) State() ParserState {
	return mr.state
}

// Boundary returns the boundary in use, which is empty while it is still
// being detected.
func (mr *MultipartReader) Boundary() string {
	if mr.delim == nil {
		return ""
	}
	return string(mr.delim[2:])
}

// Next returns the next part. It returns io.EOF once the closing boundary has
// been read, and a *ParseError if the body is malformed or truncated. Errors
// are sticky.
func (mr *MultipartReader) Next() (Part, error) {
	for mr.err == nil {
		part, emitted, progressed, err := mr.step()
		if err != nil {
			mr.err = err
			break
		}
		if emitted {
			return part, nil
		}
		if mr.state == Done {
			mr.buf = nil
			mr.err = io.EOF
			break
		}
		if progressed {
			continue
		}
		if mr.eof {
			mr.err = mr.fail("unexpected end of stream")
			break
		}
		if err := mr.fill(); err != nil {
			mr.err = err
		}
	}
	return Part{}, mr.err
}

// All yields every remaining part in order. Iteration stops after the first
// error; io.EOF is not reported.
func (mr *MultipartReader) All() iter.Seq2[Part, error] {
	return func(yield func(Part, error) bool) {
		for {
			part, err := mr.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(part, err) || err != nil {
				return
			}
		}
	}
}

// Close closes the source if it is an io.Closer.
func (mr *MultipartReader) Close() error {
	if c, ok := mr.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (mr *MultipartReader) fill() error {
	n, err := mr.src.Read(mr.chunk)
	mr.buf = append(mr.buf, mr.chunk[:n]...)
	if errors.Is(err, io.EOF) {
		mr.eof = true
		return nil
	}
	return err
}

func (mr *MultipartReader) fail(reason string) *ParseError {
	return &ParseError{
		State:    mr.state,
		Buffered: append([]byte(nil), mr.buf...),
		Reason:   reason,
	}
}

// step advances the state machine as far as the buffered bytes allow for a
// single transition. progressed is false when more input is needed.
func (mr *MultipartReader) step() (part Part, emitted, progressed bool, err error) {
	switch mr.state {
	case AwaitingBoundary:
		progressed, err = mr.awaitBoundary()
	case ReadingPartHeaders:
		progressed, err = mr.readHeaderLine()
	case ReadingPartBody:
		part, emitted = mr.readBody()
		progressed = emitted
	}
	return part, emitted, progressed, err
}

func (mr *MultipartReader) awaitBoundary() (bool, error) {
	if mr.delim == nil {
		return mr.detectBoundary(), nil
	}

	idx := bytes.Index(mr.buf, mr.delim)
	if idx < 0 {
		// Keep only what could still be the start of a delimiter.
		if keep := len(mr.delim) - 1; len(mr.buf) > keep {
			mr.buf = mr.buf[len(mr.buf)-keep:]
		}
		return false, nil
	}

	rest := mr.buf[idx+len(mr.delim):]
	if len(rest) < 2 {
		if mr.eof && len(rest) == 0 {
			mr.state = Done
			return true, nil
		}
		return false, nil
	}
	if rest[0] == '-' && rest[1] == '-' {
		mr.state = Done
		return true, nil
	}

	eol := bytes.IndexByte(rest, '\n')
	if eol < 0 {
		return false, nil
	}
	mr.buf = rest[eol+1:]
	mr.state = ReadingPartHeaders
	mr.current = Part{Header: map[string]string{}}
	return true, nil
}

func (mr *MultipartReader) detectBoundary() bool {
	eol := bytes.IndexByte(mr.buf, '\n')
	end := eol
	if eol < 0 {
		if !mr.eof {
			return false
		}
		end = len(mr.buf)
	}
	line := bytes.TrimRight(mr.buf[:end], " \t\r")
	if len(line) > 2 && bytes.HasPrefix(line, []byte("--")) {
		// A body without parts opens with the close delimiter.
		if len(line) > 4 && bytes.HasSuffix(line, []byte("--")) {
			line = line[:len(line)-2]
		}
		mr.delim = append([]byte(nil), line...)
		// Leave the line in place so the boundary search consumes it.
		return true
	}
	if eol < 0 {
		return false
	}
	mr.buf = mr.buf[eol+1:]
	return true
}

func (mr *MultipartReader) readHeaderLine() (bool, error) {
	eol := bytes.IndexByte(mr.buf, '\n')
	if eol < 0 {
		return false, nil
	}
	line := bytes.TrimSuffix(mr.buf[:eol], []byte("\r"))
	if len(line) == 0 {
		mr.buf = mr.buf[eol+1:]
		mr.state = ReadingPartBody
		mr.searched = 0
		return true, nil
	}

	name, value, ok := bytes.Cut(line, []byte(":"))
	if !ok {
		return false, mr.fail(fmt.Sprintf("header line %q has no ':' separator", line))
	}
	key := textproto.CanonicalMIMEHeaderKey(string(bytes.TrimSpace(name)))
	mr.current.Header[key] = string(bytes.TrimSpace(value))
	mr.buf = mr.buf[eol+1:]
	return true, nil
}

func (mr *MultipartReader) readBody() (Part, bool) {
	var end int
	if bytes.HasPrefix(mr.buf, mr.delim) {
		end = 0
	} else {
		start := max(mr.searched-len(mr.delim), 0)
		idx := bytes.Index(mr.buf[start:], append([]byte("\n"), mr.delim...))
		if idx < 0 {
			mr.searched = len(mr.buf)
			return Part{}, false
		}
		end = start + idx + 1
	}

	body := bytes.TrimSuffix(bytes.TrimSuffix(mr.buf[:end], []byte("\n")), []byte("\r"))
	part := mr.current
	part.Body = append([]byte(nil), body...)

	// The delimiter is left at the head of the buffer for awaitBoundary to
	// decide between another part and the end of the body.
	mr.buf = mr.buf[end:]
	mr.current = Part{}
	mr.state = AwaitingBoundary
	return part, true
}
