package internal

import (
	"bytes"
	"sync"

	"github.com/starford/arkvault/internal/monitor"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type notBuilt struct{}

func (notBuilt) Index() monitor.Index { return nil }
