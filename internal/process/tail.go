package process

import (
	"strings"
	"sync"
)

// DefaultTailLines is how many trailing output lines are kept for diagnostics.
const DefaultTailLines = 40

// TailBuffer is a thread-safe ring of the most recent output lines.
type TailBuffer struct {
	lines []string
	size  int
	head  int
	count int
	mu    sync.RWMutex
}

// NewTailBuffer creates a buffer holding at most size lines.
func NewTailBuffer(size int) *TailBuffer {
	if size <= 0 {
		size = DefaultTailLines
	}
	return &TailBuffer{
		lines: make([]string, size),
		size:  size,
	}
}

// Write appends a line, overwriting the oldest once full.
func (b *TailBuffer) Write(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.head] = line
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}
}

// Lines returns the buffered lines oldest first.
func (b *TailBuffer) Lines() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return nil
	}

	result := make([]string, b.count)
	if b.count < b.size {
		copy(result, b.lines[:b.count])
		return result
	}
	n := copy(result, b.lines[b.head:])
	copy(result[n:], b.lines[:b.head])
	return result
}

// String joins the buffered lines with newlines.
func (b *TailBuffer) String() string {
	return strings.Join(b.Lines(), "\n")
}
