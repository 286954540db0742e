package bot

import "sync"

// AnswerBus routes interactive question answers from UI callbacks to the
// goroutine awaiting them. One waiter per thread at most.
type AnswerBus struct {
	mu      sync.Mutex
	waiters map[string]chan []string
}

func NewAnswerBus() *AnswerBus {
	return &AnswerBus{waiters: make(map[string]chan []string)}
}

// Register creates a fresh answer channel for a thread, replacing any
// previous one. Must be called before the question UI is sent so an
// immediate click cannot race the waiter.
func (b *AnswerBus) Register(threadID string) <-chan []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []string, 1)
	b.waiters[threadID] = ch
	return ch
}

// PostAnswer delivers the selected labels to the thread's waiter.
// Returns false when no waiter exists, e.g. after a restart.
func (b *AnswerBus) PostAnswer(threadID string, labels []string) bool {
	b.mu.Lock()
	ch, ok := b.waiters[threadID]
	b.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- labels:
		return true
	default:
		// Channel already holds an undelivered answer
		return false
	}
}

// Unregister removes the thread's waiter
func (b *AnswerBus) Unregister(threadID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.waiters, threadID)
}
