package api

import (
	"sync"

	"github.com/seantiz/quill/internal/model"
)

// ResultBroker routes each completed query result to the HTTP handlers
// awaiting it. It is safe for concurrent use.
//
// Delivered results are retained so that late subscribers (a poll arriving
// after the drain cycle dispatched the result) still receive the payload
// instead of blocking forever. One retained payload per request id is
// acceptable for the expected request volume.
type ResultBroker struct {
	mu     sync.Mutex
	topics map[uint64]*resultTopic
}

type resultTopic struct {
	subs    map[int]chan model.Payload
	nextID  int
	payload model.Payload
	done    bool
}

// NewResultBroker creates a new result broker.
func NewResultBroker() *ResultBroker {
	return &ResultBroker{
		topics: make(map[uint64]*resultTopic),
	}
}

// Subscribe returns a channel that receives the result for the given
// request id and an unsubscribe function. If the result already arrived,
// the channel carries it immediately.
func (b *ResultBroker) Subscribe(id uint64) (<-chan model.Payload, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[id]
	if !ok {
		t = &resultTopic{subs: make(map[int]chan model.Payload)}
		b.topics[id] = t
	}

	ch := make(chan model.Payload, 1)
	if t.done {
		ch <- t.payload
		close(ch)
		return ch, func() {}
	}

	subID := t.nextID
	t.nextID++
	t.subs[subID] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, subID)
	}
}

// Publish delivers the result for the given request id to all subscribers
// and retains it for late ones. Exactly one publish per id is expected;
// later publishes for the same id are ignored.
func (b *ResultBroker) Publish(id uint64, payload model.Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[id]
	if !ok {
		t = &resultTopic{subs: make(map[int]chan model.Payload)}
		b.topics[id] = t
	}
	if t.done {
		return
	}

	t.done = true
	t.payload = payload
	for subID, ch := range t.subs {
		ch <- payload
		close(ch)
		delete(t.subs, subID)
	}
}

// Forget drops the retained result for the given request id.
func (b *ResultBroker) Forget(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics, id)
}
