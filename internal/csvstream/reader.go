package csvstream

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// sniffLen is how much of the stream is inspected for encoding and
// delimiter detection before any record is parsed.
const sniffLen = 4096

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options control parsing of one tariff file.
type Options struct {
	// Delimiter is the configured field separator. Zero means ';'.
	Delimiter rune
	// HasHeader marks the first record as column names. When false,
	// columns are named positionally: col_1, col_2, ...
	HasHeader bool
}

// Row is one data record. A row-level parse problem (typically a column
// count mismatch) is reported through Err; the stream keeps going.
type Row struct {
	Line   int
	Values []string
	Err    error
}

// Reader yields one record at a time; memory stays bounded by a single
// record regardless of file size.
type Reader struct {
	cr      *csv.Reader
	headers []string
	pending *Row
	line    int
}

// New wraps r in a streaming record reader. Supplier files arrive in
// UTF-8 (optionally with a BOM) or in a Windows-1252/Latin-1 legacy
// encoding; the first 4KB decide which decoder applies. If the
// configured delimiter never appears in the first line, common
// alternatives are sniffed.
func New(r io.Reader, opts Options) (*Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)

	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("read file head: %w", err)
	}
	if len(head) == 0 {
		return nil, errors.New("empty file")
	}

	var src io.Reader = br
	if bytes.HasPrefix(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
		head = head[len(utf8BOM):]
	} else if !validUTF8Prefix(head) {
		src = transform.NewReader(br, charmap.Windows1252.NewDecoder())
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = ';'
	}
	firstLine := firstLineOf(head)
	if !strings.ContainsRune(firstLine, delim) {
		delim = sniffDelimiter(firstLine, delim)
	}

	cr := csv.NewReader(src)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rd := &Reader{cr: cr}

	first, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read first record: %w", err)
	}
	if opts.HasHeader {
		rd.headers = make([]string, len(first))
		for i, h := range first {
			rd.headers[i] = strings.TrimSpace(h)
		}
	} else {
		rd.headers = make([]string, len(first))
		for i := range first {
			rd.headers[i] = fmt.Sprintf("col_%d", i+1)
		}
		rd.line++
		rd.pending = &Row{Line: rd.line, Values: first}
	}
	return rd, nil
}

// Headers returns the column names, configured or positional.
func (r *Reader) Headers() []string {
	return r.headers
}

// Next returns the next data row. The second return value is false once
// the stream is exhausted. Rows carrying Err have no usable Values.
func (r *Reader) Next() (Row, bool) {
	if r.pending != nil {
		row := *r.pending
		r.pending = nil
		return row, true
	}
	for {
		rec, err := r.cr.Read()
		if err == io.EOF {
			return Row{}, false
		}
		r.line++
		if err != nil {
			// Column-count mismatches come back with the record
			// attached; either way the row is unusable but the
			// stream continues.
			return Row{Line: r.line, Err: err}, true
		}
		return Row{Line: r.line, Values: rec}, true
	}
}

// validUTF8Prefix reports whether b is valid UTF-8, ignoring a rune cut
// off at the buffer boundary.
func validUTF8Prefix(b []byte) bool {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if r, _ := utf8.DecodeLastRune(b); r != utf8.RuneError {
			break
		}
		b = b[:len(b)-1]
	}
	return utf8.Valid(b)
}

func firstLineOf(head []byte) string {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	return strings.TrimSuffix(string(head), "\r")
}

// sniffDelimiter picks the most frequent candidate separator in the
// first line, keeping the configured one when nothing matches.
func sniffDelimiter(line string, configured rune) rune {
	best, bestCount := configured, 0
	for _, cand := range []rune{';', ',', '\t', '|'} {
		if n := strings.Count(line, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}
