package cmd

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// mpbProgressSink renders one clone's transfer progress as an mpb bar.
// It implements pkg/cluster.ProgressSink.
type mpbProgressSink struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	name     string
	current  int64
	total    int64

	mu      sync.Mutex
	message string
}

func newMpbProgressSink(progress *mpb.Progress, name string) *mpbProgressSink {
	s := &mpbProgressSink{progress: progress, name: name}

	s.bar = progress.AddBar(0,
		mpb.PrependDecorators(decor.Name(name+" ")),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Any(func(decor.Statistics) string {
				if s.total > 0 {
					return fmt.Sprintf(" %s/%s", humanize.Bytes(uint64(s.current)), humanize.Bytes(uint64(s.total)))
				}
				s.mu.Lock()
				defer s.mu.Unlock()
				if s.message != "" {
					return " " + s.message
				}
				return ""
			}),
		),
	)
	return s
}

func (s *mpbProgressSink) SetLength(total int64) {
	s.total = total
	s.bar.SetTotal(total, false)
}

func (s *mpbProgressSink) SetPosition(pos int64) {
	s.current = pos
	s.bar.SetCurrent(pos)
}

// SetMessage records the latest sideband text line for the decorator
// above. The transport reports byte counts only through these lines, so
// the message doubles as the bar's progress display until SetLength
// supplies a real total.
func (s *mpbProgressSink) SetMessage(text string) {
	s.mu.Lock()
	s.message = text
	s.mu.Unlock()
	s.bar.SetCurrent(s.bar.Current())
}

// Suspend calls fn directly. mpb redraws on its own ticker and there is
// no bar-level pause primitive to hook, so the bar keeps redrawing while
// fn runs; a credential prompt shares the terminal with it.
func (s *mpbProgressSink) Suspend(fn func()) {
	fn()
}
