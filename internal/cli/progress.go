package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/sift/internal/model"
)

// ProgressBar renders batch progress on a terminal. It implements
// engine.ProgressObserver.
type ProgressBar struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	total  int
	mu     sync.Mutex
}

// NewProgressBar creates a bar that is sized on the first snapshot.
func NewProgressBar(writer io.Writer) *ProgressBar {
	return &ProgressBar{writer: writer}
}

// OnProgress moves the bar to p.Current and shows the latest file name.
func (b *ProgressBar) OnProgress(p model.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.Total <= 0 {
		return
	}
	if b.bar == nil || b.total != p.Total {
		b.bar = b.newBar(p.Total)
		b.total = p.Total
	}

	if p.CurrentFileName != "" {
		b.bar.Describe(fmt.Sprintf("[cyan]Classifying[reset] %s", truncate(p.CurrentFileName, 32)))
	}
	if err := b.bar.Set(p.Current); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

func (b *ProgressBar) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Classifying invoices...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(b.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
