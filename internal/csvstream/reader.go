package csvstream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// MaxPhysicalLines bounds how many data lines a single file may contribute.
	MaxPhysicalLines = 10000

	utf8BOM        = "\ufeff"
	readBufferSize = 64 * 1024
	maxRecordBytes = 1 << 20
)

var (
	ErrEmptyFile      = errors.New("csv file is empty")
	ErrNoHeader       = errors.New("csv file has no header row")
	ErrRecordTooLarge = errors.New("csv record exceeds maximum size")
)

// Row maps a lower-cased header name to a non-empty cell value.
type Row map[string]string

// Record is one logical data row. Number is the 1-based data line (the
// header excluded) the record starts on, so a multi-line quoted record
// keeps the number an editor shows for its first line.
type Record struct {
	Number int
	Fields Row
}

// Reader pulls records from a CSV source one at a time.
type Reader struct {
	br        *bufio.Reader
	closer    io.Closer
	sep       rune
	header    []string
	lines     int
	truncated bool
	done      bool
}

// Open opens path and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	r, err := NewReader(f, DefaultSeparator)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader wraps src. The first non-blank line becomes the header.
func NewReader(src io.Reader, sep rune) (*Reader, error) {
	if sep == 0 {
		sep = DefaultSeparator
	}
	r := &Reader{br: bufio.NewReaderSize(src, readBufferSize), sep: sep}

	sawBytes := false
	for {
		line, err := r.readLine()
		if line != "" || err == nil {
			sawBytes = true
		}
		if r.lines == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}
		if strings.TrimSpace(line) != "" {
			for _, h := range ParseLine(line, sep) {
				r.header = append(r.header, strings.ToLower(strings.TrimSpace(h)))
			}
			r.lines = 0
			return r, nil
		}
		if err == io.EOF {
			if !sawBytes {
				return nil, ErrEmptyFile
			}
			return nil, ErrNoHeader
		}
		if err != nil {
			return nil, err
		}
	}
}

// Header returns the lower-cased column names.
func (r *Reader) Header() []string { return r.header }

// Truncated reports whether reading stopped at MaxPhysicalLines.
func (r *Reader) Truncated() bool { return r.truncated }

// Next returns the next record, or io.EOF when the input is exhausted or the
// line ceiling has been reached. Blank lines are returned as records with no
// fields so that row numbers stay aligned with the data lines.
func (r *Reader) Next() (Record, error) {
	if r.done {
		return Record{}, io.EOF
	}
	if r.lines >= MaxPhysicalLines {
		r.truncated = r.hasMore()
		r.done = true
		return Record{}, io.EOF
	}

	line, err := r.readLine()
	if err == io.EOF && line == "" {
		r.done = true
		return Record{}, io.EOF
	}
	if err != nil && err != io.EOF {
		return Record{}, err
	}
	start := r.lines

	for endsInsideQuote(line, r.sep) && err == nil {
		var more string
		more, err = r.readLine()
		if err != nil && err != io.EOF {
			return Record{}, err
		}
		line += "\n" + more
		if len(line) > maxRecordBytes {
			return Record{}, fmt.Errorf("%w: data line %d", ErrRecordTooLarge, start)
		}
	}
	if err == io.EOF {
		r.done = true
	}

	return Record{Number: start, Fields: r.mapFields(ParseLine(line, r.sep))}, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) mapFields(fields []string) Row {
	row := make(Row, len(fields))
	for i, v := range fields {
		if i >= len(r.header) || r.header[i] == "" {
			break
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		row[r.header[i]] = v
	}
	return row
}

// readLine returns one physical line without its terminator. It returns io.EOF
// together with the final line when the input does not end in a newline.
func (r *Reader) readLine() (string, error) {
	var b strings.Builder
	for {
		chunk, isPrefix, err := r.br.ReadLine()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				break
			}
			return b.String(), err
		}
		b.Write(chunk)
		if b.Len() > maxRecordBytes {
			return "", ErrRecordTooLarge
		}
		if !isPrefix {
			break
		}
	}
	r.lines++
	return b.String(), nil
}

func (r *Reader) hasMore() bool {
	for {
		b, err := r.br.Peek(1)
		if err != nil || len(b) == 0 {
			return false
		}
		line, err := r.readLine()
		if strings.TrimSpace(line) != "" {
			return true
		}
		if err != nil {
			return false
		}
	}
}
