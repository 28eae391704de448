// Package model turns the generated C byte-array source of a model back
// into the packed binary it was produced from.
//
// Each line is read against a small grammar:
//
//	line    = noise run [trailer]
//	noise   = { non-word character }
//	run     = "0x" ( hex digit | "x" | "," | " " ) { hex digit | "x" | "," | " " }
//	literal = "0x" hexdigit [hexdigit]
//
// Word characters are Unicode letters, numbers and underscore, so a line
// led by a non-ASCII letter is skipped, as is a bare "0x".
// The run is split on commas, empty fields are dropped and every
// remaining field must be a literal. Lines that do not start a run after
// the noise are skipped; this relies on the generator putting array
// data and declarations on separate lines.
package model

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/tflmake/internal/fsutil"
)

// ErrNoModelData is returned when no line of the input carries array data.
var ErrNoModelData = errors.New("no model data found")

// ParseError reports a field inside an array run that is not a byte literal.
type ParseError struct {
	Line  int
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: invalid byte literal %q: %v", e.Line, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	errNoPrefix   = errors.New("missing 0x prefix")
	errOutOfRange = errors.New("value out of byte range")
)

// Extract reads r line by line and returns the bytes of every array run,
// in order.
func Extract(r io.Reader) ([]byte, error) {
	var out []byte
	matched := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		run, ok := arrayRun(sc.Text())
		if !ok {
			continue
		}
		matched = true
		for _, field := range strings.Split(run, ",") {
			tok := strings.TrimSpace(field)
			if tok == "" {
				continue
			}
			b, err := parseByte(tok)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Token: tok, Err: err}
			}
			out = append(out, b)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read model source: %w", err)
	}
	if !matched {
		return nil, ErrNoModelData
	}
	return out, nil
}

// arrayRun skips leading non-word characters and returns the run of
// array characters that follows, if the line starts one.
func arrayRun(line string) (string, bool) {
	i := 0
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		if isWord(r) {
			break
		}
		i += size
	}
	if !strings.HasPrefix(line[i:], "0x") {
		return "", false
	}
	j := i + 2
	for j < len(line) && isRunChar(line[j]) {
		j++
	}
	if j == i+2 {
		return "", false
	}
	return line[i:j], true
}

func parseByte(tok string) (byte, error) {
	digits, ok := strings.CutPrefix(tok, "0x")
	if !ok {
		return 0, errNoPrefix
	}
	if len(digits) > 2 {
		// 0x0ff is still a byte; only reject what does not fit
		digits = strings.TrimLeft(digits, "0")
		if len(digits) > 2 {
			return 0, errOutOfRange
		}
		if digits == "" {
			return 0, nil
		}
	}
	v, err := strconv.ParseUint(digits, 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isRunChar(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F' ||
		c == 'x' || c == ',' || c == ' '
}

// Convert extracts the model from src and writes it to dst, replacing
// any existing file. Nothing is written unless extraction succeeds.
// It returns the number of bytes written.
func Convert(fs billy.Filesystem, src, dst string) (int, error) {
	f, err := fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open model source: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := Extract(f)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", src, err)
	}
	if err := fsutil.WriteFileAtomic(fs, dst, data, 0o644); err != nil {
		return 0, err
	}
	return len(data), nil
}

// ExtractBytes is Extract over an in-memory source.
func ExtractBytes(src []byte) ([]byte, error) {
	return Extract(bytes.NewReader(src))
}
