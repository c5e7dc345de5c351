package cannon

import (
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"
)

// Progress is notified as pixels or stars finish. It only observes; the
// numerical result never depends on it. Increment may be called concurrently.
type Progress interface {
	Start(total int, message string)
	Increment()
	Finish()
}

// NoProgress discards all notifications.
type NoProgress struct{}

func (NoProgress) Start(int, string) {}
func (NoProgress) Increment()        {}
func (NoProgress) Finish()           {}

type progressBar struct {
	w   io.Writer
	mu  sync.Mutex
	bar *pb.ProgressBar
}

// NewProgressBar returns a Progress that draws a terminal bar on w.
func NewProgressBar(w io.Writer) Progress {
	return &progressBar{w: w}
}

func (p *progressBar) Start(total int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
	}
	p.bar = pb.New(total).SetWriter(p.w).Set("prefix", message+" ").Start()
}

func (p *progressBar) Increment() {
	p.mu.Lock()
	bar := p.bar
	p.mu.Unlock()
	if bar != nil {
		bar.Increment()
	}
}

func (p *progressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
