package parser

import (
	"bytes"
	"io"
	"mime/quotedprintable"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeContent converts raw file bytes into a UTF-8 string. The corpus
// mixes plain ASCII, quoted-printable and Latin-1 content, so decoding is
// best-effort: quoted-printable first, then a Latin-1 reinterpretation,
// finally replacement of whatever is still invalid.
func DecodeContent(raw []byte) string {
	if decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw))); err == nil {
		raw = decoded
	}

	if utf8.Valid(raw) {
		return string(raw)
	}

	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil && utf8.Valid(decoded) {
		return string(decoded)
	}

	return strings.ToValidUTF8(string(raw), "�")
}
