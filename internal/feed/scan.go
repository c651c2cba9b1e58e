package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/and161185/mirror-importer/internal/convert"
	"github.com/and161185/mirror-importer/internal/errs"
	"github.com/and161185/mirror-importer/internal/model"
)

const (
	maxLineSize = 1 << 20
	// truncatedSize is how much of an overlong line is kept for logging.
	truncatedSize = 256
)

// Line is the result of decoding one non-blank feed line: either Record or Err is set.
type Line struct {
	Number int
	Text   string
	Record model.AccountInfo
	Err    error
}

// Stats counts what a scan saw.
type Stats struct {
	Lines     int
	Blank     int
	Decoded   int
	Malformed int
}

// Scan opens src, decompresses it and calls fn for every non-blank line in order.
// Per-line decode failures, including lines longer than 1 MiB, are delivered to fn
// through Line.Err and do not stop the scan.
// Failures to open, decompress or read the stream, and any error returned by fn, abort it.
func Scan(ctx context.Context, src Source, fn func(Line) error) (st Stats, err error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return st, fmt.Errorf("open %s: %w", src.Name(), err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", src.Name(), cerr)
		}
	}()

	zr, err := gzip.NewReader(rc)
	if err != nil {
		return st, fmt.Errorf("gzip %s: %w", src.Name(), err)
	}
	defer zr.Close()

	br := bufio.NewReaderSize(zr, 64*1024)
	for {
		if err = ctx.Err(); err != nil {
			return st, err
		}
		raw, tooLong, rerr := readLine(br)
		if rerr != nil && rerr != io.EOF {
			return st, fmt.Errorf("read %s: %w", src.Name(), rerr)
		}
		if rerr == io.EOF && len(raw) == 0 && !tooLong {
			break
		}

		st.Lines++
		text := string(raw)
		if !tooLong && strings.TrimSpace(text) == "" {
			st.Blank++
		} else {
			line := Line{Number: st.Lines, Text: text}
			if tooLong {
				line.Err = fmt.Errorf("line longer than %d bytes: %w", maxLineSize, errs.ErrMalformedRecord)
			} else {
				line.Record, line.Err = convert.DecodeLine(text)
			}
			if line.Err != nil {
				st.Malformed++
			} else {
				st.Decoded++
			}
			if err = fn(line); err != nil {
				return st, err
			}
		}
		if rerr == io.EOF {
			break
		}
	}
	return st, nil
}

// readLine returns the next line without its terminator. A line longer than
// maxLineSize is consumed to its end and returned cut to truncatedSize bytes
// with tooLong set.
func readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := r.ReadSlice('\n')
		if !tooLong {
			n := len(chunk)
			if rerr == nil {
				n-- // terminator
			}
			if len(line)+n > maxLineSize {
				line = append(line, chunk...)[:truncatedSize]
				tooLong = true
			} else {
				line = append(line, chunk...)
			}
		}
		if rerr == bufio.ErrBufferFull {
			continue
		}
		if !tooLong {
			line = bytes.TrimRight(line, "\r\n")
		}
		return line, tooLong, rerr
	}
}
