package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/xiaoyuanzhu-com/bilisub/config"
	"github.com/xiaoyuanzhu-com/bilisub/log"
)

// TrackInfo describes one subtitle stream found in a video container.
type TrackInfo struct {
	Index    int // ffmpeg stream index, usable with -map 0:N
	Codec    string
	Language string
	Title    string
	Forced   bool
	Default  bool
}

// IsTextBased reports whether the stream can be extracted as text without OCR.
func (t TrackInfo) IsTextBased() bool {
	switch t.Codec {
	case "subrip", "srt", "ass", "ssa", "webvtt", "mov_text", "text":
		return true
	}
	return false
}

// FFmpeg is the container-extraction collaborator, shelling out to ffmpeg and
// ffprobe. Extraction honors the configured deadline.
type FFmpeg struct {
	timeout time.Duration
}

// NewFFmpeg builds the collaborator from process configuration.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{timeout: config.Get().ExtractTimeout}
}

type probeResult struct {
	Streams []struct {
		Index       int               `json:"index"`
		CodecName   string            `json:"codec_name"`
		CodecType   string            `json:"codec_type"`
		Disposition map[string]int    `json:"disposition"`
		Tags        map[string]string `json:"tags"`
	} `json:"streams"`
}

// ListSubtitleTracks probes the container and returns its subtitle streams.
func (f *FFmpeg) ListSubtitleTracks(ctx context.Context, videoPath string) ([]TrackInfo, error) {
	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	out, err := ffmpeg.ProbeWithTimeout(videoPath, timeout, ffmpeg.KwArgs{})
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", videoPath, err)
	}

	var probed probeResult
	if err := json.Unmarshal([]byte(out), &probed); err != nil {
		return nil, fmt.Errorf("ffprobe output: %w", err)
	}

	var tracks []TrackInfo
	for _, s := range probed.Streams {
		if s.CodecType != "subtitle" {
			continue
		}
		tracks = append(tracks, TrackInfo{
			Index:    s.Index,
			Codec:    s.CodecName,
			Language: s.Tags["language"],
			Title:    s.Tags["title"],
			Forced:   s.Disposition["forced"] == 1,
			Default:  s.Disposition["default"] == 1,
		})
	}
	log.Debug().Str("video", videoPath).Int("tracks", len(tracks)).Msg("probed subtitle tracks")
	return tracks, nil
}

// ExtractTrack extracts one subtitle stream to outPath, converting to the
// target codec (srt, ass, vtt) or copying bit-exact for pgs.
func (f *FFmpeg) ExtractTrack(ctx context.Context, videoPath string, streamIndex int, outPath, targetCodec string) error {
	var kwargs ffmpeg.KwArgs
	switch targetCodec {
	case "srt":
		kwargs = ffmpeg.KwArgs{"map": fmt.Sprintf("0:%d", streamIndex), "c:s": "srt"}
	case "ass":
		kwargs = ffmpeg.KwArgs{"map": fmt.Sprintf("0:%d", streamIndex), "c:s": "ass"}
	case "vtt":
		kwargs = ffmpeg.KwArgs{"map": fmt.Sprintf("0:%d", streamIndex), "c:s": "webvtt"}
	case "pgs":
		kwargs = ffmpeg.KwArgs{"map": fmt.Sprintf("0:%d", streamIndex), "c:s": "copy"}
	default:
		return fmt.Errorf("extract: unsupported target codec %q", targetCodec)
	}

	cmd := ffmpeg.Input(videoPath).
		Output(outPath, kwargs).
		OverWriteOutput().
		Silent(true).
		Compile()

	runCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("extract stream %d from %s: %w", streamIndex, videoPath, err)
		}
		return nil
	case <-runCtx.Done():
		_ = cmd.Process.Kill()
		<-done
		return fmt.Errorf("extract stream %d from %s: %w", streamIndex, videoPath, runCtx.Err())
	}
}
