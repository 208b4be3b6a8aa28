package subtitle

import (
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

func TestDetectEncodingBOM(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"utf8 bom", []byte("\xEF\xBB\xBFhello"), "utf-8"},
		{"utf16le bom", []byte{0xFF, 0xFE, 'h', 0}, "utf-16le"},
		{"utf16be bom", []byte{0xFE, 0xFF, 0, 'h'}, "utf-16be"},
	}
	for _, tt := range tests {
		name, conf := DetectEncoding(tt.data)
		if name != tt.want || conf != 1.0 {
			t.Errorf("%s: got (%s, %.2f), want (%s, 1.00)", tt.name, name, conf, tt.want)
		}
	}
}

func TestDetectEncodingUTF8(t *testing.T) {
	name, conf := DetectEncoding([]byte("你好，世界"))
	if name != "utf-8" || conf < 0.9 {
		t.Errorf("got (%s, %.2f)", name, conf)
	}
}

func TestDetectAndDecodeGBK(t *testing.T) {
	srt := "1\n00:00:01,000 --> 00:00:03,000\n你好，世界。这是一段中文字幕。\n"
	data, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(srt))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	name, conf := DetectEncoding(data)
	if name != "gb18030" && name != "gbk" {
		t.Fatalf("detected %s (%.2f), want a GB family encoding", name, conf)
	}
	if conf < 0.5 {
		t.Errorf("confidence %.2f too low", conf)
	}

	track, err := Parse(data, FormatSRT, "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(track.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(track.Events))
	}
	if !strings.Contains(track.Events[0].Text, "中文字幕") {
		t.Errorf("decoded text = %q", track.Events[0].Text)
	}

	// Round trip back out as UTF-8 SRT
	out, err := Marshal(track, FormatSRT)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Parse(out, FormatSRT, "utf-8")
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back.Events[0].Text != track.Events[0].Text {
		t.Errorf("round trip changed text: %q vs %q", back.Events[0].Text, track.Events[0].Text)
	}
}

func TestDecodeDeclaredEncodings(t *testing.T) {
	text := "字幕テスト"
	tests := []struct {
		declared string
		encode   func(string) ([]byte, error)
	}{
		{"shift-jis", func(s string) ([]byte, error) { return japanese.ShiftJIS.NewEncoder().Bytes([]byte(s)) }},
		{"gb18030", func(s string) ([]byte, error) { return simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(s)) }},
	}
	for _, tt := range tests {
		data, err := tt.encode(text)
		if err != nil {
			t.Fatalf("%s: encode: %v", tt.declared, err)
		}
		got, err := DecodeText(data, tt.declared)
		if err != nil {
			t.Fatalf("%s: decode: %v", tt.declared, err)
		}
		if got != text {
			t.Errorf("%s: got %q, want %q", tt.declared, got, text)
		}
	}
}

func TestDetectBig5(t *testing.T) {
	data, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte("這是一段繁體中文字幕，夠長才能判斷。"))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	name, _ := DetectEncoding(data)
	if name == "utf-8" {
		t.Errorf("big5 bytes detected as utf-8")
	}
	out, err := DecodeText(data, "big5")
	if err != nil {
		t.Fatalf("decode as big5: %v", err)
	}
	if !strings.Contains(out, "字幕") {
		t.Errorf("decoded %q", out)
	}
}

func TestDecodeUnknownEncoding(t *testing.T) {
	if _, err := DecodeText([]byte("x"), "klingon"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}
