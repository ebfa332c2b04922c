package cache

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

const binarySniffLen = 512

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// fallbackEncodings are tried in order when the bytes are not valid UTF-8.
// ISO-8859-1 maps every byte, so it always succeeds.
var fallbackEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"windows-1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

// ReadText reads path as text. UTF-8 is preferred (a leading BOM is
// stripped); otherwise Windows-1252 and then ISO-8859-1 are tried. Files
// with a NUL byte in the first 512 bytes are rejected as binary.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", perrors.New(perrors.ErrCodeFileUnreadable, "read "+path, err).
			WithDetail("path", path)
	}
	return DecodeText(path, data)
}

// DecodeText applies ReadText's decoding rules to data read from path.
func DecodeText(path string, data []byte) (string, error) {
	if isBinary(data) {
		return "", perrors.New(perrors.ErrCodeFileUnreadable, "binary content in "+path, nil).
			WithDetail("path", path)
	}

	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}

	for _, fb := range fallbackEncodings {
		out, err := fb.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		s := string(out)
		// Undefined code points decode to U+FFFD; try the next encoding.
		if strings.ContainsRune(s, utf8.RuneError) {
			continue
		}
		return s, nil
	}

	return "", perrors.New(perrors.ErrCodeFileUnreadable, "cannot decode "+path, nil).
		WithDetail("path", path).
		WithSuggestion("convert the file to UTF-8 or add it to .ai/.indexignore")
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}
