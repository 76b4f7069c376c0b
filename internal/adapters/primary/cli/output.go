package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"go-screen-recorder/internal/core/domain"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Countdown(n int) {
	fmt.Fprintf(f.w, "Recording starts in %d...\n", n)
}

func (f *Formatter) RecordingStarted(res *domain.StartResult) {
	fmt.Fprintf(f.w, "● Recording (%s, %d tracks). Press Ctrl+C to stop.\n", res.MimeType, len(res.Stream.Tracks()))
}

// Progress rewrites the current line with the live duration and size.
func (f *Formatter) Progress(d time.Duration, size int64) {
	fmt.Fprintf(f.w, "\r  %s  %s   ", formatDuration(d), formatSize(size))
}

func (f *Formatter) RecordingStopped(res *domain.RecordingResult) {
	fmt.Fprintf(f.w, "\n■ Recording stopped (%s, %s)\n", formatDuration(res.Duration), formatSize(res.Size))
}

func (f *Formatter) Saved(rec *domain.Recording) {
	fmt.Fprintf(f.w, "Saved %q as %s\n", rec.Title, rec.ID)
}

func (f *Formatter) Percent(op string, pct int) {
	fmt.Fprintf(f.w, "\r%s... %3d%%", op, pct)
	if pct >= 100 {
		fmt.Fprintln(f.w)
	}
}

func (f *Formatter) RecordingList(recs []domain.Recording, total int64) {
	if len(recs) == 0 {
		f.Info("No recordings found")
		return
	}
	tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDURATION\tSIZE\tTYPE\tCREATED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Title,
			formatDuration(time.Duration(r.Duration*float64(time.Second))),
			formatSize(r.Size), r.MimeType,
			r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
	fmt.Fprintf(f.w, "\n%d recordings, %s total\n", len(recs), formatSize(total))
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "%s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✓ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "! %s\n", msg)
}

func (f *Formatter) Check(name string, ok bool, detail string) {
	mark := "✓"
	if !ok {
		mark = "✗"
	}
	fmt.Fprintf(f.w, "  %s %s: %s\n", mark, name, detail)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
