package cluster

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"time"
)

// throttledProgress adapts go-git's raw sideband Progress writer to a
// ProgressSink, forwarding at most one message every interval so a
// chatty transport doesn't flood the sink (and whatever terminal
// rendering sits behind it).
type throttledProgress struct {
	sink     ProgressSink
	interval time.Duration
	last     time.Time
	buf      bytes.Buffer
}

func newThrottledProgress(sink ProgressSink, interval time.Duration) io.Writer {
	return &throttledProgress{sink: sink, interval: interval}
}

func (p *throttledProgress) Write(b []byte) (int, error) {
	n, err := p.buf.Write(b)
	if err != nil {
		return n, err
	}

	if time.Since(p.last) < p.interval {
		return n, nil
	}
	p.last = time.Now()

	scanner := bufio.NewScanner(strings.NewReader(p.buf.String()))
	scanner.Split(bufio.ScanLines)

	var lastLine string
	for scanner.Scan() {
		lastLine = scanner.Text()
	}
	if lastLine != "" {
		p.sink.SetMessage(lastLine)
	}
	p.buf.Reset()

	return n, nil
}
