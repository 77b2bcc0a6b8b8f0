package engine

import "sync"

// subscriberBufferSize is the channel buffer for each change subscriber.
// Changes are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// ChangeBroker fans wallpaper changes out to subscribers, keyed by output
// name. It is safe for concurrent use; the event loop publishes, API
// streaming handlers subscribe.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after an output is unplugged) receive a closed channel instead
// of blocking forever.
type ChangeBroker struct {
	mu     sync.Mutex
	topics map[string]*changeTopic
}

type changeTopic struct {
	subs   map[int]chan string
	nextID int
	closed bool
}

// NewChangeBroker creates a new change broker.
func NewChangeBroker() *ChangeBroker {
	return &ChangeBroker{
		topics: make(map[string]*changeTopic),
	}
}

// Subscribe returns a channel receiving wallpaper paths set on the given
// output and an unsubscribe function. If the output has already been closed
// the returned channel is immediately closed.
func (b *ChangeBroker) Subscribe(output string) (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[output]
	if !ok {
		t = &changeTopic{subs: make(map[int]chan string)}
		b.topics[output] = t
	}

	ch := make(chan string, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends a wallpaper path to all subscribers of the given output.
// Changes are dropped for subscribers whose buffers are full.
func (b *ChangeBroker) Publish(output, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[output]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- path:
		default:
			// Drop for slow subscribers to avoid blocking the event loop.
		}
	}
}

// Close signals that no more changes will be published for the given output
// (it was unplugged). All subscriber channels are closed and future
// Subscribe calls return a closed channel.
func (b *ChangeBroker) Close(output string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[output]
	if !ok {
		b.topics[output] = &changeTopic{subs: make(map[int]chan string), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

// Reopen clears a closed marker so a re-plugged output can publish again.
func (b *ChangeBroker) Reopen(output string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.topics[output]; ok && t.closed {
		delete(b.topics, output)
	}
}
