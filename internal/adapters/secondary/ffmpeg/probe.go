package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Probe inspects the local ffmpeg binary. Results are cached for the life of
// the process.
type Probe struct {
	bin string

	once     sync.Once
	encoders map[string]bool
	err      error
}

func NewProbe(bin string) *Probe {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Probe{bin: bin}
}

func (p *Probe) Bin() string { return p.bin }

// Encoders returns the set of encoder names ffmpeg was built with.
func (p *Probe) Encoders(ctx context.Context) (map[string]bool, error) {
	p.once.Do(func() {
		out, err := exec.CommandContext(ctx, p.bin, "-hide_banner", "-encoders").Output()
		if err != nil {
			p.err = fmt.Errorf("list ffmpeg encoders: %w", err)
			return
		}
		p.encoders = parseEncoders(out)
	})
	return p.encoders, p.err
}

// Version returns the first line of `ffmpeg -version`.
func (p *Probe) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, p.bin, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// SupportsMime reports whether every codec the mime type needs is available.
func (p *Probe) SupportsMime(ctx context.Context, mimeType string) bool {
	encoders, err := p.Encoders(ctx)
	if err != nil {
		return false
	}
	plan, err := planFor(mimeType)
	if err != nil {
		return false
	}
	return encoders[plan.videoCodec] && encoders[plan.audioCodec]
}

// parseEncoders reads the table printed by `ffmpeg -encoders`. Rows follow a
// " ------" separator and start with a flags column.
func parseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !inTable {
			if strings.HasPrefix(line, "---") {
				inTable = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

// outputPlan is the ffmpeg side of a mime type.
type outputPlan struct {
	format     string
	videoCodec string
	audioCodec string
	movflags   string
}

var codecEncoders = map[string]string{
	"vp9":  "libvpx-vp9",
	"vp8":  "libvpx",
	"h264": "libx264",
	"avc1": "libx264",
	"opus": "libopus",
	"aac":  "aac",
}

// planFor maps "video/webm;codecs=vp9,opus" style identifiers to a muxer and
// encoder pair.
func planFor(mimeType string) (outputPlan, error) {
	base, params, _ := strings.Cut(mimeType, ";")
	base = strings.TrimSpace(strings.ToLower(base))

	var plan outputPlan
	switch base {
	case "video/webm":
		plan = outputPlan{format: "webm", videoCodec: "libvpx", audioCodec: "libopus"}
	case "video/mp4":
		plan = outputPlan{format: "mp4", videoCodec: "libx264", audioCodec: "aac", movflags: "frag_keyframe+empty_moov+default_base_moof"}
	case "video/x-matroska":
		plan = outputPlan{format: "matroska", videoCodec: "libx264", audioCodec: "libopus"}
	default:
		return outputPlan{}, fmt.Errorf("unsupported mime type %q", mimeType)
	}

	params = strings.TrimSpace(params)
	if codecs, ok := strings.CutPrefix(params, "codecs="); ok {
		for _, c := range strings.Split(strings.Trim(codecs, `"`), ",") {
			c = strings.TrimSpace(strings.ToLower(c))
			c, _, _ = strings.Cut(c, ".")
			enc, ok := codecEncoders[c]
			if !ok {
				return outputPlan{}, fmt.Errorf("unsupported codec %q in %q", c, mimeType)
			}
			switch c {
			case "opus", "aac":
				plan.audioCodec = enc
			default:
				plan.videoCodec = enc
			}
		}
	}

	// The webm muxer only takes VP8/VP9.
	if plan.format == "webm" && plan.videoCodec == "libx264" {
		return outputPlan{}, fmt.Errorf("webm cannot carry h264: %q", mimeType)
	}
	return plan, nil
}
