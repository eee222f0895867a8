package linecount

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrUnknownCharset is returned for charset names that are not registered
	// or not supported.
	ErrUnknownCharset = errors.New("unknown charset")

	// ErrDecode wraps every failure to turn file bytes into text.
	ErrDecode = errors.New("decode failed")
)

// DefaultCharset is used when no charset name is configured.
const DefaultCharset = "UTF-8"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decoder turns raw file contents into text. A nil enc means strict UTF-8.
type decoder struct {
	name string
	enc  encoding.Encoding
}

// ResolveCharset validates a charset name and returns its canonical name:
// the MIME name when the encoding has one, otherwise the IANA name.
func ResolveCharset(name string) (string, error) {
	d, err := newDecoder(name)
	if err != nil {
		return "", err
	}
	return d.name, nil
}

func newDecoder(name string) (*decoder, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return &decoder{name: DefaultCharset}, nil
	}

	enc, err := ianaindex.IANA.Encoding(trimmed)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
	}
	if enc == unicode.UTF8 {
		return &decoder{name: DefaultCharset}, nil
	}

	return &decoder{name: displayName(enc, trimmed), enc: enc}, nil
}

// displayName prefers the MIME name of enc ("ISO-8859-1" rather than the
// registry's "ISO_8859-1:1987").
func displayName(enc encoding.Encoding, fallback string) string {
	for _, index := range []*ianaindex.Index{ianaindex.MIME, ianaindex.IANA} {
		if name, err := index.Name(enc); err == nil && name != "" {
			return name
		}
	}
	return fallback
}

func (d *decoder) decode(data []byte) (string, error) {
	if d.enc == nil {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: input is not valid %s", ErrDecode, d.name)
		}
		return string(data), nil
	}

	out, err := d.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDecode, d.name, err)
	}
	return string(out), nil
}
