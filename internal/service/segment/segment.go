// Package segment generates IDs for meeting-mode transcript segments.
package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator numbers segments monotonically across sessions.
// Safe for concurrent use.
type Generator struct {
	counter uint64
}

func New() *Generator {
	return &Generator{}
}

// Next returns the next ID for a segment recorded in sessionId.
func (g *Generator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-seg-%d", sessionId, n)
}

// ForSession binds the generator to one session.
func (g *Generator) ForSession(sessionId string) func() string {
	return func() string {
		return g.Next(sessionId)
	}
}

// Count returns how many IDs have been issued.
func (g *Generator) Count() uint64 {
	return atomic.LoadUint64(&g.counter)
}
