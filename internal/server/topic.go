package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-lag/internal/store"
)

const (
	idleTopicTimeout = time.Second * 5
	loadTimeout      = time.Second * 10
)

type exitReq struct {
	// shutdown forces the topic to exit even with subscribers
	shutdown bool
	done     chan bool
}

type subscriber struct {
	path     string
	feed     *store.Feed[store.Snapshot]
	done     chan struct{}
	doneOnce sync.Once
}

func newSubscriber(path string) *subscriber {
	return &subscriber{path: path, done: make(chan struct{})}
}

func (s *subscriber) finish(err error) {
	s.doneOnce.Do(func() {
		s.feed.Finish(err)
		close(s.done)
	})
}

// Topic serves one realtime path. Snapshots are reloaded from the
// repositories on every refresh and sent in full to each subscriber.
type Topic struct {
	path        string
	cs          *ChatServer
	log         *log.Logger
	subscribers map[*subscriber]struct{}
	current     *store.Snapshot
	joinChan    chan *subscriber
	leaveChan   chan *subscriber
	refreshChan chan struct{}
	// killTimer is used to automatically unload the topic when it has no subscribers
	killTimer *time.Timer
	exit      chan exitReq
}

func newTopic(path string, cs *ChatServer) *Topic {
	return &Topic{
		path:        path,
		cs:          cs,
		log:         cs.log,
		subscribers: make(map[*subscriber]struct{}),
		joinChan:    make(chan *subscriber, 256),
		leaveChan:   make(chan *subscriber, 256),
		refreshChan: make(chan struct{}, 1),
		exit:        make(chan exitReq, 1),
	}
}

func (t *Topic) start() {
	t.killTimer = time.NewTimer(idleTopicTimeout)
	t.killTimer.Stop()

	for {
		select {
		case sub := <-t.joinChan:
			t.handleJoin(sub)
		case sub := <-t.leaveChan:
			t.handleLeave(sub)
		case <-t.refreshChan:
			t.handleRefresh()
		case <-t.killTimer.C:
			t.handleTopicTimeout()
		case e := <-t.exit:
			if t.handleTopicExit(e) {
				return
			}
		}
	}
}

// requestRefresh queues a reload. Requests arriving while one is already
// queued are merged since the reload reads the latest state.
func (t *Topic) requestRefresh() {
	select {
	case t.refreshChan <- struct{}{}:
	default:
	}
}

func (t *Topic) stop() {
	done := make(chan bool, 1)
	t.exit <- exitReq{shutdown: true, done: done}
	<-done
}

func (t *Topic) handleJoin(sub *subscriber) {
	t.killTimer.Stop()

	if sub.feed.Finished() {
		t.resetIfIdle()
		return
	}

	if t.current == nil {
		snap, err := t.loadSnapshot()
		if err != nil {
			t.log.Printf("load %q: %v", t.path, err)
			sub.finish(err)
			t.resetIfIdle()
			return
		}
		t.current = &snap
	}

	t.subscribers[sub] = struct{}{}
	t.cs.stats.Incr(NumActiveSubscriptions)
	sub.feed.Send(*t.current)
}

func (t *Topic) handleLeave(sub *subscriber) {
	if _, ok := t.subscribers[sub]; !ok {
		return
	}

	t.log.Printf("removing subscriber from topic %q", t.path)
	t.removeSubscriber(sub, nil)
	t.resetIfIdle()
}

func (t *Topic) handleRefresh() {
	if len(t.subscribers) == 0 {
		t.current = nil
		return
	}

	snap, err := t.loadSnapshot()
	if err != nil {
		t.log.Printf("refresh %q: %v", t.path, err)
		t.current = nil
		for sub := range t.subscribers {
			t.removeSubscriber(sub, err)
		}
		t.resetIfIdle()
		return
	}

	t.current = &snap
	t.broadcast(snap)
}

func (t *Topic) broadcast(snap store.Snapshot) {
	for sub := range t.subscribers {
		if !sub.feed.Send(snap) {
			t.removeSubscriber(sub, nil)
		}
	}
	t.resetIfIdle()
}

func (t *Topic) handleTopicTimeout() {
	t.log.Printf("topic %q timed out", t.path)
	select {
	case t.cs.unloadTopicChan <- t.path:
	default:
		t.killTimer.Reset(idleTopicTimeout)
	}
}

// handleTopicExit reports whether the topic stopped. An idle unload is
// refused when a subscriber arrived after the timer fired.
func (t *Topic) handleTopicExit(e exitReq) bool {
	if !e.shutdown {
		t.drainJoins()
		if len(t.subscribers) > 0 {
			t.log.Printf("topic %q has subscribers, refusing unload", t.path)
			e.done <- false
			return false
		}
	}

	t.log.Printf("topic %q is exiting", t.path)
	t.killTimer.Stop()
	for sub := range t.subscribers {
		t.removeSubscriber(sub, ErrServerStopped)
	}
	for len(t.joinChan) > 0 {
		(<-t.joinChan).finish(ErrServerStopped)
	}

	e.done <- true
	return true
}

func (t *Topic) drainJoins() {
	for {
		select {
		case sub := <-t.joinChan:
			t.handleJoin(sub)
		default:
			return
		}
	}
}

func (t *Topic) removeSubscriber(sub *subscriber, err error) {
	delete(t.subscribers, sub)
	t.cs.stats.Decr(NumActiveSubscriptions)
	sub.finish(err)
}

func (t *Topic) resetIfIdle() {
	if len(t.subscribers) == 0 {
		t.log.Printf("no subscribers on %q, starting kill timer", t.path)
		t.killTimer.Reset(idleTopicTimeout)
	}
}

func (t *Topic) loadSnapshot() (store.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	return t.cs.load(ctx, t.path)
}
