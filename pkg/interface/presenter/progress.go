package presenter

import (
	"io"
	"sync"

	"github.com/WangYihang/Catalog-Crawler/pkg/common"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ExportProgress renders export batches as a progress bar
type ExportProgress struct {
	label string
	out   io.Writer

	mu       sync.Mutex
	progress *mpb.Progress
	bar      *mpb.Bar
}

// NewExportProgress creates a progress renderer writing to out
func NewExportProgress(out io.Writer, label string) *ExportProgress {
	return &ExportProgress{label: label, out: out}
}

// OnBatch advances the bar; the first call creates it with the batch total
func (p *ExportProgress) OnBatch(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.progress = mpb.New(
			mpb.WithOutput(p.out),
			mpb.WithWidth(min(common.TerminalWidth()/2, 60)),
		)
		p.bar = p.progress.AddBar(int64(total),
			mpb.PrependDecorators(
				decor.Name(p.label, decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("[%d / %d]", decor.WCSyncWidth),
				decor.Percentage(decor.WCSyncSpace),
			),
		)
	}
	p.bar.SetCurrent(int64(done))
}

// Wait flushes the bar; it is a no-op when nothing was exported
func (p *ExportProgress) Wait() {
	p.mu.Lock()
	progress, bar := p.progress, p.bar
	p.mu.Unlock()

	if progress == nil {
		return
	}
	if !bar.Completed() {
		bar.Abort(false)
	}
	progress.Wait()
}
