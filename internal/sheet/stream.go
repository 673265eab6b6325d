package sheet

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader drops a leading UTF-8 byte order mark, which spreadsheet
// programs on Windows add to exported CSV files.
type BOMSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{br: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			if _, err := r.br.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return r.br.Read(p)
}

// UTF8Sanitizer replaces invalid UTF-8 bytes with '?' while streaming.
// A multi-byte sequence split across reads is carried over to the next call.
type UTF8Sanitizer struct {
	reader  io.Reader
	pending []byte
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.reader.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}

	if isASCII(p[:n]) {
		return n, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// to the caller. Unless atEOF, a truncated trailing rune is kept in pending.
func (s *UTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	end := len(data)
	if !atEOF {
		end -= truncatedTail(data)
		s.pending = append(s.pending, data[end:]...)
	}

	if utf8.Valid(data[:end]) {
		return end
	}

	write := 0
	for read := 0; read < end; {
		r, size := utf8.DecodeRune(data[read:end])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// truncatedTail returns how many trailing bytes form the start of a rune
// that has not been fully read yet.
func truncatedTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b&0xC0 == 0x80 {
			continue
		}
		if b >= 0xC0 && i < expectedRuneLen(b) {
			return i
		}
		return 0
	}
	return 0
}

func expectedRuneLen(lead byte) int {
	switch {
	case lead < 0xC0:
		return 1
	case lead < 0xE0:
		return 2
	case lead < 0xF0:
		return 3
	default:
		return 4
	}
}

// textSampleLen bounds how much of a CSV file is inspected to pick its
// encoding and delimiter.
const textSampleLen = 64 << 10

var delimiters = []byte{',', ';', '\t', '|'}

// prepareText strips a leading BOM from a CSV byte stream, decodes it to
// UTF-8 and reports its field delimiter.
//
// Files whose first bytes are not UTF-8 and hold no multi-byte UTF-8
// sequence are read as Windows-1252, the encoding Excel uses for CSV
// exports on Portuguese Windows installs. Anything else goes through
// UTF8Sanitizer.
func prepareText(r io.Reader) (io.Reader, rune, error) {
	br := bufio.NewReaderSize(NewBOMSkippingReader(r), textSampleLen)
	head, err := br.Peek(textSampleLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, 0, err
	}

	sample := head
	if err == nil {
		sample = sample[:len(sample)-truncatedTail(sample)]
	}

	comma := sniffDelimiter(head)
	if isLegacyText(sample) {
		return transform.NewReader(br, charmap.Windows1252.NewDecoder()), comma, nil
	}
	return NewUTF8Sanitizer(br), comma, nil
}

// isLegacyText reports whether data has invalid UTF-8 and no valid
// multi-byte sequence.
func isLegacyText(data []byte) bool {
	if isASCII(data) || utf8.Valid(data) {
		return false
	}
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError && size > 1 {
			return false
		}
		data = data[size:]
	}
	return true
}

// sniffDelimiter picks the delimiter that occurs most often on the first
// non-blank line, ignoring quoted text. A comma wins ties.
func sniffDelimiter(head []byte) rune {
	counts := make(map[byte]int, len(delimiters))
	quoted, seen := false, false
	for _, b := range head {
		if b == '"' {
			quoted = !quoted
			seen = true
			continue
		}
		if quoted {
			continue
		}
		if b == '\n' || b == '\r' {
			if seen {
				break
			}
			continue
		}
		seen = true
		if bytes.IndexByte(delimiters, b) >= 0 {
			counts[b]++
		}
	}

	best := byte(',')
	for _, d := range delimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return rune(best)
}
