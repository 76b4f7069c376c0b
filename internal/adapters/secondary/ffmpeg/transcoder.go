package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

type transcoder struct {
	bin     string
	tempDir string
	logger  *zap.SugaredLogger
}

// NewTranscoder runs trim/split/join/convert jobs through the ffmpeg binary.
// Inputs are staged as files in a per-job directory under tempDir.
func NewTranscoder(bin, tempDir string, logger *zap.SugaredLogger) ports.Transcoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &transcoder{
		bin:     bin,
		tempDir: tempDir,
		logger:  logger,
	}
}

var mp4Codecs = []string{"-c:v", "libx264", "-c:a", "aac", "-preset", "fast"}

func (t *transcoder) Trim(ctx context.Context, in domain.Artifact, start, end float64, progress domain.ProgressFunc) (domain.Artifact, error) {
	var out domain.Artifact
	err := t.withJob(func(dir string) error {
		input, err := stage(dir, "input", in)
		if err != nil {
			return err
		}
		output := filepath.Join(dir, "output.mp4")
		args := trimArgs(input, output, start, &end)
		if err := t.run(ctx, args, end-start, progress); err != nil {
			return err
		}
		out, err = readArtifact(output, "video/mp4", end-start)
		return err
	})
	return out, err
}

// Split produces len(points)+1 segments. Progress advances once per segment.
func (t *transcoder) Split(ctx context.Context, in domain.Artifact, points []float64, progress domain.ProgressFunc) ([]domain.Segment, error) {
	bounds := append([]float64{0}, points...)
	segments := make([]domain.Segment, 0, len(bounds))

	err := t.withJob(func(dir string) error {
		input, err := stage(dir, "input", in)
		if err != nil {
			return err
		}
		for i, start := range bounds {
			var end *float64
			if i+1 < len(bounds) {
				e := bounds[i+1]
				end = &e
			}
			output := filepath.Join(dir, fmt.Sprintf("segment_%d.mp4", i))
			if err := t.run(ctx, trimArgs(input, output, start, end), 0, nil); err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
			duration := 0.0
			if end != nil {
				duration = *end - start
			} else if in.Duration > start {
				duration = in.Duration - start
			}
			art, err := readArtifact(output, "video/mp4", duration)
			if err != nil {
				return err
			}
			segments = append(segments, domain.Segment{Index: i, Start: start, End: end, Artifact: art})
			report(progress, int(math.Round(float64(i+1)/float64(len(bounds))*100)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return segments, nil
}

func (t *transcoder) Join(ctx context.Context, ins []domain.Artifact, progress domain.ProgressFunc) (domain.Artifact, error) {
	var out domain.Artifact
	err := t.withJob(func(dir string) error {
		var list strings.Builder
		var total float64
		for i, in := range ins {
			path, err := stage(dir, fmt.Sprintf("input_%d", i), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(path, "'", `'\''`))
			total += in.Duration
		}
		listPath := filepath.Join(dir, "concat.txt")
		if err := os.WriteFile(listPath, []byte(list.String()), 0o600); err != nil {
			return fmt.Errorf("write concat list: %w", err)
		}

		output := filepath.Join(dir, "output.mp4")
		args := []string{"-f", "concat", "-safe", "0", "-i", listPath}
		args = append(args, mp4Codecs...)
		args = append(args, output)
		if err := t.run(ctx, args, total, progress); err != nil {
			return err
		}
		var err error
		out, err = readArtifact(output, "video/mp4", total)
		return err
	})
	return out, err
}

var qualityPresets = map[domain.ConvertQuality][]string{
	domain.QualityHigh:   {"-crf", "18", "-preset", "slow"},
	domain.QualityMedium: {"-crf", "23", "-preset", "medium"},
	domain.QualityLow:    {"-crf", "28", "-preset", "fast"},
}

// vp9 uses a wider crf scale than x264.
var webmQualityPresets = map[domain.ConvertQuality][]string{
	domain.QualityHigh:   {"-crf", "24", "-b:v", "0"},
	domain.QualityMedium: {"-crf", "31", "-b:v", "0"},
	domain.QualityLow:    {"-crf", "40", "-b:v", "0"},
}

func (t *transcoder) Convert(ctx context.Context, in domain.Artifact, format string, quality domain.ConvertQuality, progress domain.ProgressFunc) (domain.Artifact, error) {
	args, mimeType, err := convertArgs(format, quality)
	if err != nil {
		return domain.Artifact{}, err
	}

	var out domain.Artifact
	err = t.withJob(func(dir string) error {
		input, err := stage(dir, "input", in)
		if err != nil {
			return err
		}
		output := filepath.Join(dir, "output."+format)
		full := append([]string{"-i", input}, args...)
		full = append(full, output)
		if err := t.run(ctx, full, in.Duration, progress); err != nil {
			return err
		}
		out, err = readArtifact(output, mimeType, in.Duration)
		return err
	})
	return out, err
}

func convertArgs(format string, quality domain.ConvertQuality) ([]string, string, error) {
	switch format {
	case "mp4", "mkv":
		preset, ok := qualityPresets[quality]
		if !ok {
			preset = qualityPresets[domain.QualityMedium]
		}
		mimeType := "video/mp4"
		if format == "mkv" {
			mimeType = "video/x-matroska"
		}
		return append([]string{"-c:v", "libx264", "-c:a", "aac"}, preset...), mimeType, nil
	case "webm":
		preset, ok := webmQualityPresets[quality]
		if !ok {
			preset = webmQualityPresets[domain.QualityMedium]
		}
		return append([]string{"-c:v", "libvpx-vp9", "-c:a", "libopus"}, preset...), "video/webm", nil
	}
	return nil, "", fmt.Errorf("%w: unsupported output format %q", domain.ErrInvalidEdit, format)
}

// Thumbnail grabs one JPEG frame at the given offset.
func (t *transcoder) Thumbnail(ctx context.Context, in domain.Artifact, at float64) ([]byte, error) {
	var out []byte
	err := t.withJob(func(dir string) error {
		input, err := stage(dir, "input", in)
		if err != nil {
			return err
		}
		output := filepath.Join(dir, "thumbnail.jpg")
		args := []string{"-ss", formatSeconds(at), "-i", input, "-frames:v", "1", "-q:v", "2", output}
		if err := t.run(ctx, args, 0, nil); err != nil {
			return err
		}
		out, err = os.ReadFile(output)
		return err
	})
	return out, err
}

func trimArgs(input, output string, start float64, end *float64) []string {
	args := []string{"-i", input, "-ss", formatSeconds(start)}
	if end != nil {
		args = append(args, "-t", formatSeconds(*end-start))
	}
	args = append(args, mp4Codecs...)
	return append(args, output)
}

// run executes one ffmpeg job. When total is known, progress is derived from
// the out_time reported on -progress pipe:1.
func (t *transcoder) run(ctx context.Context, args []string, total float64, progress domain.ProgressFunc) error {
	full := append([]string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-progress", "pipe:1", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, t.bin, full...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr: %w", err)
	}

	t.logger.Debugw("running ffmpeg", "args", strings.Join(full, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	stderr := newTailBuffer(20)
	var g errgroup.Group
	g.Go(func() error {
		return readProgress(stdout, total, progress)
	})
	g.Go(func() error {
		_, err := io.Copy(stderr, stderrPipe)
		return err
	})
	readErr := g.Wait()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, stderr.String())
	}
	return readErr
}

// readProgress parses key=value blocks from ffmpeg -progress output.
func readProgress(r io.Reader, total float64, progress domain.ProgressFunc) error {
	last := -1
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds.
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || total <= 0 || us < 0 {
				continue
			}
			pct := int(float64(us) / 1e6 / total * 100)
			if pct > 99 {
				pct = 99
			}
			if pct > last {
				last = pct
				report(progress, pct)
			}
		case "progress":
			if value == "end" && last < 100 {
				last = 100
				report(progress, 100)
			}
		}
	}
	return sc.Err()
}

func report(progress domain.ProgressFunc, pct int) {
	if progress != nil {
		progress(pct)
	}
}

func (t *transcoder) withJob(fn func(dir string) error) error {
	dir, err := os.MkdirTemp(t.tempDir, "recorder-job-")
	if err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			t.logger.Warnw("remove job dir", "dir", dir, "error", err)
		}
	}()
	return fn(dir)
}

func stage(dir, name string, in domain.Artifact) (string, error) {
	path := filepath.Join(dir, name+extensionFor(in.MimeType))
	if err := os.WriteFile(path, in.Data, 0o600); err != nil {
		return "", fmt.Errorf("stage %s: %w", name, err)
	}
	return path, nil
}

func readArtifact(path, mimeType string, duration float64) (domain.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("read ffmpeg output: %w", err)
	}
	return domain.Artifact{Data: data, MimeType: mimeType, Duration: duration}, nil
}

func extensionFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "video/mp4":
		return ".mp4"
	case "video/x-matroska":
		return ".mkv"
	default:
		return ".webm"
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
