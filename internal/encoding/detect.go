// Package encoding turns text bodies of unknown or declared charset into UTF-8.
package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sniffLen = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// NewUTF8Reader returns a reader that yields r as UTF-8. A charset label declared by the sender
// (for example the charset parameter of a Content-Type) is trusted when it is known; otherwise
// the encoding is detected from a BOM, UTF-8 validity, then chardet, falling back to Windows-1252.
func NewUTF8Reader(r io.Reader, declared string) (io.Reader, error) {
	br := bufio.NewReader(r)

	buf, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peek: %w", err)
	}

	// A BOM beats whatever the sender declared.
	switch {
	case bytes.HasPrefix(buf, bomUTF8):
		_, _ = br.Discard(len(bomUTF8))
		return br, nil
	case bytes.HasPrefix(buf, bomUTF16LE):
		return decode(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)), nil
	case bytes.HasPrefix(buf, bomUTF16BE):
		return decode(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM)), nil
	}

	if enc := lookup(declared); enc != nil {
		return decode(br, enc), nil
	}

	if utf8.Valid(buf) {
		return br, nil
	}

	if result, err := chardet.NewTextDetector().DetectBest(buf); err == nil {
		switch result.Charset {
		case "UTF-8":
			return br, nil
		case "ISO-8859-1", "windows-1252", "ISO-8859-9":
			return decode(br, lookup(result.Charset)), nil
		}
	}

	return decode(br, charmap.Windows1252), nil
}

// ReadString reads all of r as UTF-8 text.
func ReadString(r io.Reader, declared string) (string, error) {
	ur, err := NewUTF8Reader(r, declared)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(ur)
	if err != nil {
		return "", fmt.Errorf("decoding text: %w", err)
	}

	return string(data), nil
}

func lookup(label string) xencoding.Encoding {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil
	}

	return enc
}

func decode(r io.Reader, enc xencoding.Encoding) io.Reader {
	if enc == xencoding.Nop || enc == unicode.UTF8 {
		return r
	}

	return transform.NewReader(r, enc.NewDecoder())
}
