package subtitle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// utf8BOM marks SRT and ASS output; VTT goes without.
const utf8BOM = "\xEF\xBB\xBF"

// Format is a supported subtitle file format.
type Format int

const (
	FormatSRT Format = iota
	FormatASS
	FormatSSA
	FormatVTT
)

var ErrUnsupportedFormat = errors.New("unsupported subtitle format")

func (f Format) String() string {
	switch f {
	case FormatASS:
		return "ass"
	case FormatSSA:
		return "ssa"
	case FormatVTT:
		return "vtt"
	default:
		return "srt"
	}
}

// Ext returns the file extension for the format, dot included.
func (f Format) Ext() string {
	return "." + f.String()
}

// FormatForPath guesses the format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		return FormatSRT, nil
	case ".ass":
		return FormatASS, nil
	case ".ssa":
		return FormatSSA, nil
	case ".vtt":
		return FormatVTT, nil
	}
	return FormatSRT, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

// ParseFormat parses a format name as it appears in configuration.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "srt":
		return FormatSRT, nil
	case "ass":
		return FormatASS, nil
	case "ssa":
		return FormatSSA, nil
	case "vtt":
		return FormatVTT, nil
	}
	return FormatSRT, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Parse decodes raw bytes (any supported encoding) and parses them as the given
// format. declaredEncoding may be "" to autodetect.
func Parse(data []byte, f Format, declaredEncoding string) (*Track, error) {
	text, err := DecodeText(data, declaredEncoding)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatSRT:
		return parseSRT(text)
	case FormatASS, FormatSSA:
		return parseASS(text, f)
	case FormatVTT:
		return parseVTT(text)
	}
	return nil, ErrUnsupportedFormat
}

// Marshal serializes a track into the given format's on-the-wire bytes.
// SRT and ASS are UTF-8 with BOM; VTT is UTF-8 without BOM.
func Marshal(t *Track, f Format) ([]byte, error) {
	switch f {
	case FormatSRT:
		return marshalSRT(t), nil
	case FormatASS, FormatSSA:
		return marshalASS(t), nil
	case FormatVTT:
		return marshalVTT(t), nil
	}
	return nil, ErrUnsupportedFormat
}

// ParseFile reads and parses a subtitle file, detecting format from the
// extension and encoding from the content.
func ParseFile(path string) (*Track, error) {
	f, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	track, err := Parse(data, f, "")
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	track.Codec = f.String()
	return track, nil
}
