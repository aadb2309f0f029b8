package convert

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// ErrNotText is returned by TextConverter for binary content.
var ErrNotText = errors.New("content is not text")

// TextConverter renders plain text as a preformatted, escaped block. Input
// may be UTF-8, UTF-16 with a byte order mark, or GBK.
type TextConverter struct{}

func (TextConverter) Convert(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(data) > 0 {
		if mt := mimetype.Detect(data); !isText(mt) {
			return "", fmt.Errorf("%w: detected %s", ErrNotText, mt.String())
		}
	}
	text, err := decodeText(data)
	if err != nil {
		return "", err
	}
	return `<pre class="txt-content">` + html.EscapeString(text) + `</pre>`, nil
}

// decodeText tries UTF-8, then UTF-16 (BOM required), then GBK, which also
// covers GB2312.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
	}
	if bytes.HasPrefix(data, []byte{0xff, 0xfe}) || bytes.HasPrefix(data, []byte{0xfe, 0xff}) {
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode utf-16: %w", err)
		}
		return string(out), nil
	}
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode gbk: %w", err)
	}
	return string(out), nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
