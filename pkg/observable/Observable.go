// Package observable with the multicast streams used by the exposed-thing
// runtime and the protocol binding clients.
//
// Streams are explicit: a Subject keeps an ordered list of active subscribers
// and disposal removes exactly one subscriber. There is no implicit
// deregistration through garbage collection.
package observable

import "sync"

// Subscriber is one active subscription to an Observable.
// Dispose is idempotent and may be called at any time, including from within
// one of the subscriber's own callbacks.
type Subscriber struct {
	onNext      func(item interface{})
	onError     func(err error)
	onCompleted func()

	// deliverMutex serializes deliveries to this subscriber
	deliverMutex sync.Mutex
	terminated   bool

	stateMutex sync.Mutex
	disposed   bool
	cancel     func()
}

// Dispose stops this subscription and releases the producer-side resources.
// Other subscribers of the same stream are unaffected.
func (sub *Subscriber) Dispose() {
	sub.stateMutex.Lock()
	if sub.disposed {
		sub.stateMutex.Unlock()
		return
	}
	sub.disposed = true
	cancel := sub.cancel
	sub.stateMutex.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Disposed returns true when the subscription has been disposed
func (sub *Subscriber) Disposed() bool {
	sub.stateMutex.Lock()
	defer sub.stateMutex.Unlock()
	return sub.disposed
}

// setCancel attaches the producer's cancel function. When the subscriber was
// disposed before the producer finished setting up, the cancel runs right away
// so no registration leaks.
func (sub *Subscriber) setCancel(cancel func()) {
	sub.stateMutex.Lock()
	disposed := sub.disposed
	if !disposed {
		sub.cancel = cancel
	}
	sub.stateMutex.Unlock()
	if disposed && cancel != nil {
		cancel()
	}
}

// Push delivers the next item to the subscriber.
// Ignored after disposal or after a terminal error/complete signal.
func (sub *Subscriber) Push(item interface{}) {
	sub.deliverMutex.Lock()
	defer sub.deliverMutex.Unlock()
	if sub.terminated || sub.Disposed() || sub.onNext == nil {
		return
	}
	sub.onNext(item)
}

// Fail delivers a terminal error signal to the subscriber
func (sub *Subscriber) Fail(err error) {
	sub.deliverMutex.Lock()
	defer sub.deliverMutex.Unlock()
	if sub.terminated || sub.Disposed() {
		return
	}
	sub.terminated = true
	if sub.onError != nil {
		sub.onError(err)
	}
}

// Complete delivers a terminal completion signal to the subscriber
func (sub *Subscriber) Complete() {
	sub.deliverMutex.Lock()
	defer sub.deliverMutex.Unlock()
	if sub.terminated || sub.Disposed() {
		return
	}
	sub.terminated = true
	if sub.onCompleted != nil {
		sub.onCompleted()
	}
}

// Observable is a subscribable stream of items.
// Each call to Subscribe invokes the producer's subscribe function with a fresh
// subscriber and receives a cancel function to run on disposal.
type Observable struct {
	onSubscribe func(sub *Subscriber) func()
}

// New creates an Observable from a producer subscribe function.
// The producer pushes items through the subscriber and returns the cancel
// function that tears down its resources, or nil when there is nothing to
// cancel.
func New(onSubscribe func(sub *Subscriber) func()) *Observable {
	return &Observable{onSubscribe: onSubscribe}
}

// Subscribe attaches callbacks to the stream. Any callback may be nil.
// Returns the subscription for disposal.
func (obsv *Observable) Subscribe(
	onNext func(item interface{}), onError func(err error), onCompleted func()) *Subscriber {

	sub := &Subscriber{
		onNext:      onNext,
		onError:     onError,
		onCompleted: onCompleted,
	}
	cancel := obsv.onSubscribe(sub)
	sub.setCancel(cancel)
	return sub
}

// Throw creates an Observable that delivers exactly one asynchronous error
// signal to each subscriber and never emits an item. A subscriber that never
// observes the stream never sees the error.
func Throw(err error) *Observable {
	return New(func(sub *Subscriber) func() {
		go sub.Fail(err)
		return nil
	})
}

// Filter creates an Observable that relays only the items matching the
// predicate. Error and completion signals pass through unchanged.
func (obsv *Observable) Filter(match func(item interface{}) bool) *Observable {
	return New(func(sub *Subscriber) func() {
		inner := obsv.Subscribe(
			func(item interface{}) {
				if match(item) {
					sub.Push(item)
				}
			},
			sub.Fail,
			sub.Complete,
		)
		return inner.Dispose
	})
}
