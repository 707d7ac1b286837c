package mailutil

import (
	"io"
	"mime"

	"golang.org/x/text/encoding/htmlindex"
)

// CharsetReader never returns an error
var TryMimeDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		if enc, err := htmlindex.Get(charset); err == nil {
			return enc.NewDecoder().Reader(input), nil
		} else {
			return input, nil
		}
	},
}

// "[DecodeHeader] decodes all encoded-words of the given string"
func TryMimeDecode(input string) string {
	result, _ := TryMimeDecoder.DecodeHeader(input) // TryMimeDecoder never returns an error
	return result
}

// isASCIIGraphicOrSpace reports whether r may appear unencoded in a header value.
func isASCIIGraphicOrSpace(r rune) bool {
	return (r >= 0x20 && r <= 0x7e) || r == '\t'
}

// EncodeHeaderValue encodes s per RFC 2047 if it contains any byte outside
// ASCII-graphic-or-space; otherwise it is returned unchanged.
func EncodeHeaderValue(s string) string {
	for _, r := range s {
		if !isASCIIGraphicOrSpace(r) {
			return mime.QEncoding.Encode("UTF-8", s)
		}
	}
	return s
}
