// Package observable with the multicast subject
package observable

import "sync"

// Subject is a multicast producer: items pushed with Next reach every active
// subscriber in subscription order, and all subscribers observe the same total
// order of items.
type Subject struct {
	// listMutex guards the subscriber list and the terminal state
	listMutex sync.Mutex
	// dispatchMutex serializes emissions so subscribers see one total order
	dispatchMutex sync.Mutex

	subscribers []*Subscriber
	failure     error
	completed   bool
}

// NewSubject creates an empty multicast subject
func NewSubject() *Subject {
	return &Subject{
		subscribers: make([]*Subscriber, 0),
	}
}

// snapshot returns the current subscribers, or nil after a terminal signal
func (subj *Subject) snapshot() []*Subscriber {
	subj.listMutex.Lock()
	defer subj.listMutex.Unlock()
	if subj.failure != nil || subj.completed {
		return nil
	}
	active := make([]*Subscriber, len(subj.subscribers))
	copy(active, subj.subscribers)
	return active
}

// Next publishes an item to all current subscribers
func (subj *Subject) Next(item interface{}) {
	subj.dispatchMutex.Lock()
	defer subj.dispatchMutex.Unlock()
	for _, sub := range subj.snapshot() {
		sub.Push(item)
	}
}

// Fail terminates the subject, delivering the error to all current subscribers.
// Later subscribers receive the same error signal.
func (subj *Subject) Fail(err error) {
	subj.dispatchMutex.Lock()
	defer subj.dispatchMutex.Unlock()

	subj.listMutex.Lock()
	if subj.failure != nil || subj.completed {
		subj.listMutex.Unlock()
		return
	}
	subj.failure = err
	active := subj.subscribers
	subj.subscribers = nil
	subj.listMutex.Unlock()

	for _, sub := range active {
		sub.Fail(err)
	}
}

// Complete terminates the subject, delivering completion to all current
// subscribers. Later subscribers complete immediately.
func (subj *Subject) Complete() {
	subj.dispatchMutex.Lock()
	defer subj.dispatchMutex.Unlock()

	subj.listMutex.Lock()
	if subj.failure != nil || subj.completed {
		subj.listMutex.Unlock()
		return
	}
	subj.completed = true
	active := subj.subscribers
	subj.subscribers = nil
	subj.listMutex.Unlock()

	for _, sub := range active {
		sub.Complete()
	}
}

func (subj *Subject) remove(target *Subscriber) {
	subj.listMutex.Lock()
	defer subj.listMutex.Unlock()
	for index, sub := range subj.subscribers {
		if sub == target {
			subj.subscribers = append(subj.subscribers[:index], subj.subscribers[index+1:]...)
			return
		}
	}
}

// Observable returns the multicast stream of this subject.
// Subscribing after a terminal signal delivers that signal asynchronously.
func (subj *Subject) Observable() *Observable {
	return New(func(sub *Subscriber) func() {
		subj.listMutex.Lock()
		if subj.failure != nil {
			failure := subj.failure
			subj.listMutex.Unlock()
			go sub.Fail(failure)
			return nil
		}
		if subj.completed {
			subj.listMutex.Unlock()
			go sub.Complete()
			return nil
		}
		subj.subscribers = append(subj.subscribers, sub)
		subj.listMutex.Unlock()
		return func() {
			subj.remove(sub)
		}
	})
}
