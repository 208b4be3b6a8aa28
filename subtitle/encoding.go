package subtitle

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/xiaoyuanzhu-com/bilisub/log"
)

// DetectEncoding guesses the character encoding of raw subtitle bytes and
// returns the encoding name with a confidence in [0,1]. BOMs win outright;
// otherwise valid UTF-8 is preferred, then the East Asian legacy encodings are
// trial-decoded and scored.
func DetectEncoding(data []byte) (string, float64) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return "utf-8", 1.0
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return "utf-16le", 1.0
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return "utf-16be", 1.0
	}

	if utf8.Valid(data) {
		if isASCII(data) {
			return "utf-8", 0.8
		}
		return "utf-8", 0.99
	}

	best, bestScore := "", 0.0
	for _, c := range []struct {
		name string
		enc  encoding.Encoding
	}{
		{"gb18030", simplifiedchinese.GB18030},
		{"gbk", simplifiedchinese.GBK},
		{"big5", traditionalchinese.Big5},
		{"shift-jis", japanese.ShiftJIS},
	} {
		score := trialDecodeScore(data, c.enc)
		if score > bestScore {
			best, bestScore = c.name, score
		}
	}
	if best == "" {
		return "utf-8", 0.1
	}
	return best, bestScore
}

// trialDecodeScore decodes with the candidate encoding and scores the result:
// replacement runes count heavily against it, CJK output counts for it.
func trialDecodeScore(data []byte, enc encoding.Encoding) float64 {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return 0
	}
	var total, bad, cjk int
	for _, r := range string(out) {
		total++
		switch {
		case r == utf8.RuneError:
			bad++
		case isCJKRune(r):
			cjk++
		}
	}
	if total == 0 {
		return 0
	}
	score := 1.0 - 4.0*float64(bad)/float64(total)
	if score < 0 {
		return 0
	}
	// Reward plausible CJK content, capped so clean ASCII still scores
	score = score * (0.6 + 0.4*minFloat(float64(cjk)/float64(total)*4, 1))
	return score
}

func isCJKRune(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3040 && r <= 0x30FF) ||
		(r >= 0xAC00 && r <= 0xD7AF) ||
		(r >= 0x3000 && r <= 0x303F)
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// DecodeText converts raw bytes to a UTF-8 string. declaredEncoding may be ""
// to autodetect. The UTF-8 BOM, when present, is preserved for the parsers to
// strip.
func DecodeText(data []byte, declaredEncoding string) (string, error) {
	name := strings.ToLower(declaredEncoding)
	conf := 1.0
	if name == "" {
		name, conf = DetectEncoding(data)
		log.Debug().Str("encoding", name).Float64("confidence", conf).Msg("detected encoding")
	}

	var enc encoding.Encoding
	switch strings.ReplaceAll(name, "_", "-") {
	case "utf-8", "utf8", "ascii":
		return string(data), nil
	case "utf-16le", "utf16le":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case "utf-16be", "utf16be":
		enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case "gb18030":
		enc = simplifiedchinese.GB18030
	case "gbk", "gb2312":
		enc = simplifiedchinese.GBK
	case "big5":
		enc = traditionalchinese.Big5
	case "shift-jis", "shiftjis", "sjis":
		enc = japanese.ShiftJIS
	default:
		return "", fmt.Errorf("decode: unsupported encoding %q", name)
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), nil
}
