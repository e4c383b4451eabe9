package chat

import (
	"sync"
	"time"
)

// typingEmitter is the part of Client a TypingNotifier drives.
type typingEmitter interface {
	StartTyping()
	StopTyping()
}

// TypingNotifier is the input-side typing policy: every keystroke announces typing and re-arms a single idle
// timer, typing stops when the timer fires or immediately when the message is sent.
type TypingNotifier struct {
	emitter typingEmitter
	idle    time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	active bool
	// seq invalidates a timer that fired while being re-armed
	seq uint64
}

func NewTypingNotifier(emitter typingEmitter, idle time.Duration) *TypingNotifier {
	if idle <= 0 {
		idle = defaultTypingTimeout
	}
	return &TypingNotifier{emitter: emitter, idle: idle}
}

// Keystroke reports user input.
func (n *TypingNotifier) Keystroke() {
	n.mu.Lock()
	n.active = true
	n.seq++
	seq := n.seq
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.idle, func() { n.expire(seq) })
	n.mu.Unlock()
	n.emitter.StartTyping()
}

func (n *TypingNotifier) expire(seq uint64) {
	n.mu.Lock()
	if seq != n.seq || !n.active {
		n.mu.Unlock()
		return
	}
	n.active = false
	n.timer = nil
	n.mu.Unlock()
	n.emitter.StopTyping()
}

// Sent stops typing right away, as the message is on its way.
func (n *TypingNotifier) Sent() {
	if n.disarm() {
		n.emitter.StopTyping()
	}
}

// Stop disarms the timer without emitting anything.
func (n *TypingNotifier) Stop() {
	n.disarm()
}

func (n *TypingNotifier) disarm() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	wasActive := n.active
	n.active = false
	return wasActive
}
