package uplink

import (
	"bufio"
	"io"
	"strings"

	"github.com/juju/errors"
)

const MaxLine = 512

// ReadLines calls fn for every non-empty line until r fails or fn returns false.
// Trailing CR and NUL are stripped. Overlong lines are skipped.
// Returns nil on io.EOF.
func ReadLines(r io.Reader, fn func(line string) bool) error {
	br := bufio.NewReaderSize(r, MaxLine)
	skip := false
	for {
		b, err := br.ReadSlice('\n')
		switch err {
		case nil:
			if skip {
				skip = false
				continue
			}
			if line := strings.TrimRight(string(b), "\r\n\x00"); line != "" {
				if !fn(line) {
					return nil
				}
			}
		case bufio.ErrBufferFull:
			skip = true
		case io.EOF:
			if !skip {
				if line := strings.TrimRight(string(b), "\r\n\x00"); line != "" {
					fn(line)
				}
			}
			return nil
		default:
			return errors.Annotate(err, "uplink read")
		}
	}
}

// Stdio joins stdin and stdout, uplink simulation on terminal or pipe.
type Stdio struct {
	io.Reader
	io.Writer
}

func (Stdio) Close() error { return nil }
