// Package events はジョブの状態変化を購読者へ配信します。
package events

import (
	"context"
	"log"
	"sync"
	"time"
)

// Type はイベントの種別です。
type Type string

const (
	TypeUpdate   Type = "job-update"
	TypeProgress Type = "job-progress"
	TypeComplete Type = "job-complete"
	TypeError    Type = "job-error"
)

// Event はジョブ単位の状態変化です。
type Event struct {
	JobID    string    `json:"jobId"`
	Type     Type      `json:"type"`
	Status   string    `json:"status,omitempty"`
	Progress float64   `json:"progress"`
	Filename string    `json:"filename,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher はイベントを発行できるものが実装します。
type Publisher interface {
	Publish(ev Event)
}

// Sink は購読者とは別にすべてのイベントを受け取る中継先です。
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

const (
	defaultInboxSize      = 1024
	defaultSubscriberSize = 64
	sinkTimeout           = 2 * time.Second
)

// Broadcaster はイベントを全購読者へ配信します。
// 配信はベストエフォートで、再送やリプレイは行いません。
type Broadcaster struct {
	inbox  chan Event
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup

	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int

	sinks  []Sink
	logger *log.Logger
}

// NewBroadcaster は配信ループを起動した Broadcaster を返します。
func NewBroadcaster(logger *log.Logger, sinks ...Sink) *Broadcaster {
	b := &Broadcaster{
		inbox:  make(chan Event, defaultInboxSize),
		done:   make(chan struct{}),
		subs:   make(map[int]chan Event),
		sinks:  sinks,
		logger: logger,
	}
	b.wg.Add(1)
	go b.loop()
	return b
}

// Publish はイベントを配信キューに積みます。Close 後は破棄されます。
func (b *Broadcaster) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.inbox <- ev:
	case <-b.done:
	}
}

// Subscribe は購読を開始し、受信チャネルと解除関数を返します。
// 購読開始前に発行されたイベントは届きません。
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, defaultSubscriberSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// SubscriberCount は現在の購読者数を返します。
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close は配信ループを停止し、すべての購読チャネルを閉じます。
func (b *Broadcaster) Close() {
	b.closed.Do(func() {
		close(b.done)
		b.wg.Wait()

		b.mu.Lock()
		for id, ch := range b.subs {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	})
}

func (b *Broadcaster) loop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.inbox:
			b.fanOut(ev)
		}
	}
}

func (b *Broadcaster) fanOut(ev Event) {
	b.mu.RLock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// 受信が追いつかない購読者には届けない
		}
	}
	b.mu.RUnlock()

	for _, sink := range b.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := sink.Deliver(ctx, ev); err != nil && b.logger != nil {
			b.logger.Printf("event sink delivery failed job=%s type=%s: %v", ev.JobID, ev.Type, err)
		}
		cancel()
	}
}
