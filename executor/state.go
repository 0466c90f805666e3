package executor

import (
	"sync"

	"github.com/ethereum/go-ethereum/event"
)

// State is the executor's observable view of the rollup chain (spec.md
// §3 ExecutorState): how far the soft and firm heads have advanced.
// The readers poll it through CurrentState; Subscribe delivers every
// change. The executor is its only writer.
type State struct {
	SoftHeight uint64
	FirmHeight uint64
}

// stateObservable is the broadcast "current state" handle (spec.md
// design notes: "single-producer, many-consumer latest-value
// channel"). It is built on go-ethereum's event.Feed, the same
// primitive go-ethereum itself uses for head subscriptions, combined
// with an atomically-held latest value so readers can poll without
// subscribing.
type stateObservable struct {
	mu     sync.RWMutex
	latest State
	feed   event.Feed
}

func newStateObservable() *stateObservable {
	return &stateObservable{}
}

// Get returns the most recently published state.
func (o *stateObservable) Get() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latest
}

// publish stores and broadcasts a new state. Only the executor calls
// this.
func (o *stateObservable) publish(s State) {
	o.mu.Lock()
	o.latest = s
	o.mu.Unlock()
	o.feed.Send(s)
}

// Subscribe registers ch to receive every subsequent published State.
// The caller must keep draining ch or unsubscribe: event.Feed.Send
// blocks until every subscribed channel has accepted the value, so a
// slow subscriber delays the executor's publish.
func (o *stateObservable) Subscribe(ch chan<- State) event.Subscription {
	return o.feed.Subscribe(ch)
}
