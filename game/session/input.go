package session

// DefaultInputBuffer is the number of key presses a QueueInput holds
const DefaultInputBuffer = 64

// QueueInput is an InputSource fed by another goroutine, such as a websocket
// reader or an HTTP handler
type QueueInput struct {
	ch chan rune
}

// NewQueueInput creates a queue holding up to size key presses
func NewQueueInput(size int) *QueueInput {
	if size <= 0 {
		size = DefaultInputBuffer
	}
	return &QueueInput{ch: make(chan rune, size)}
}

// Push enqueues a key press. It reports false when the queue is full.
func (q *QueueInput) Push(r rune) bool {
	select {
	case q.ch <- r:
		return true
	default:
		return false
	}
}

// Poll returns the oldest queued key press
func (q *QueueInput) Poll() (rune, bool) {
	select {
	case r := <-q.ch:
		return r, true
	default:
		return 0, false
	}
}
