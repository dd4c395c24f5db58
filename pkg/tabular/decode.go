package tabular

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported by Decode.
const (
	EncodingUTF8        = "UTF-8"
	EncodingUTF16       = "UTF-16"
	EncodingLatin1      = "ISO-8859-1"
	EncodingWindows1252 = "Windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Bytes that Windows-1252 leaves undefined.
var cp1252Undefined = map[byte]bool{0x81: true, 0x8D: true, 0x8F: true, 0x90: true, 0x9D: true}

// errUndecodable is turned into a reconerr.Encoding by the caller, which knows the file name.
type errUndecodable struct{}

func (errUndecodable) Error() string { return "no decoder accepted the input" }

// Decode converts raw export bytes to UTF-8, trying UTF-8, then Latin-1, then
// Windows-1252. Byte-order marks are consumed.
func Decode(data []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		data = data[len(utf8BOM):]
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		out, err := decodeWith(dec, data)
		if err != nil {
			return "", "", errUndecodable{}
		}
		return out, EncodingUTF16, nil
	}

	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}

	if !hasAny(data, func(b byte) bool { return b >= 0x80 && b <= 0x9F }) {
		out, err := decodeWith(charmap.ISO8859_1.NewDecoder(), data)
		if err == nil {
			return out, EncodingLatin1, nil
		}
	}

	if !hasAny(data, func(b byte) bool { return cp1252Undefined[b] }) {
		out, err := decodeWith(charmap.Windows1252.NewDecoder(), data)
		if err == nil {
			return out, EncodingWindows1252, nil
		}
	}

	return "", "", errUndecodable{}
}

func decodeWith(dec *encoding.Decoder, data []byte) (string, error) {
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), dec))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func hasAny(data []byte, pred func(byte) bool) bool {
	for _, b := range data {
		if pred(b) {
			return true
		}
	}
	return false
}
