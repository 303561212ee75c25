// Package batch buffers events in memory and hands them to a Sender in bounded batches.
package batch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"example.com/learntrack/internal/domain"
)

// sendTimeout bounds one background send so a stalled sink cannot pin a goroutine.
const sendTimeout = 30 * time.Second

// Sender delivers one batch. A batch succeeds or fails as a whole.
type Sender interface {
	Send(ctx context.Context, events []domain.Event) error
}

// Batcher owns the pending queue. Push always accepts the event; the queue cap is only
// enforced when a failed batch is put back.
type Batcher struct {
	mu            sync.Mutex
	queue         []domain.Event
	sender        Sender
	batchSize     int
	maxQueueSize  int
	flushInterval time.Duration
	debug         bool

	// inflight counts background sends; idle is signalled when it reaches zero.
	inflight int
	idle     *sync.Cond
	stopOnce sync.Once
	stop     chan struct{}
}

func NewBatcher(sender Sender, maxQueueSize, batchSize int, flushInterval time.Duration, debug bool) *Batcher {
	b := &Batcher{
		queue:         make([]domain.Event, 0, batchSize),
		sender:        sender,
		batchSize:     batchSize,
		maxQueueSize:  maxQueueSize,
		flushInterval: flushInterval,
		debug:         debug,
		stop:          make(chan struct{}),
	}
	b.idle = sync.NewCond(&b.mu)
	return b
}

// Start runs the periodic flush until ctx is cancelled or Stop is called.
func (b *Batcher) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(b.flushInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stop:
				return
			case <-t.C:
				_ = b.Flush(ctx)
			}
		}
	}()
}

// Stop ends the periodic flush. Safe to call more than once.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// Push appends ev. When immediate is set or the queue reached the batch size, a batch
// is detached right away and sent in the background.
func (b *Batcher) Push(ev domain.Event, immediate bool) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	n := len(b.queue)
	b.mu.Unlock()
	queueDepth.Set(float64(n))

	if immediate || n >= b.batchSize {
		b.FlushAsync()
	}
}

// Len returns the number of queued events.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Snapshot returns a copy of the queued events, oldest first.
func (b *Batcher) Snapshot() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Event(nil), b.queue...)
}

// Flush sends one batch and waits for the result. On failure the batch is put back at
// the front of the queue if it fits under the cap, otherwise it is dropped. The send
// error is returned for callers that care; the tracker ignores it.
func (b *Batcher) Flush(ctx context.Context) error {
	batch := b.take()
	if len(batch) == 0 {
		return nil
	}
	return b.send(ctx, batch)
}

// FlushAsync detaches one batch now and sends it on a goroutine.
func (b *Batcher) FlushAsync() {
	b.mu.Lock()
	batch := b.takeLocked()
	if len(batch) > 0 {
		b.inflight++
	}
	b.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	go func() {
		defer b.done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		_ = b.send(ctx, batch)
	}()
}

func (b *Batcher) done() {
	b.mu.Lock()
	b.inflight--
	if b.inflight == 0 {
		b.idle.Broadcast()
	}
	b.mu.Unlock()
}

// Wait blocks until background sends have finished. It may run alongside Push and
// FlushAsync; sends started while it waits are waited for too.
func (b *Batcher) Wait() {
	b.mu.Lock()
	for b.inflight > 0 {
		b.idle.Wait()
	}
	b.mu.Unlock()
}

func (b *Batcher) take() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.takeLocked()
}

func (b *Batcher) takeLocked() []domain.Event {
	n := min(len(b.queue), b.batchSize)
	if n == 0 {
		return nil
	}
	batch := make([]domain.Event, n)
	copy(batch, b.queue[:n])
	b.queue = append(b.queue[:0], b.queue[n:]...)
	queueDepth.Set(float64(len(b.queue)))
	return batch
}

func (b *Batcher) send(ctx context.Context, batch []domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
			log.Printf("[batch] %v", err)
			batchesFailed.Inc()
			b.requeue(batch)
		}
	}()
	if err = b.sender.Send(ctx, batch); err != nil {
		batchesFailed.Inc()
		if b.requeue(batch) {
			log.Printf("[batch] send FAILED, requeued: err=%v size=%d", err, len(batch))
		} else {
			log.Printf("[batch] send FAILED, dropped: err=%v size=%d", err, len(batch))
		}
		return err
	}
	batchesSent.Inc()
	eventsSent.Add(float64(len(batch)))
	if b.debug {
		log.Printf("[batch] send OK: size=%d", len(batch))
	}
	return nil
}

// requeue puts batch back in front of the queue unless that would exceed the cap.
func (b *Batcher) requeue(batch []domain.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue)+len(batch) > b.maxQueueSize {
		eventsDropped.Add(float64(len(batch)))
		return false
	}
	q := make([]domain.Event, 0, len(batch)+len(b.queue))
	q = append(q, batch...)
	b.queue = append(q, b.queue...)
	queueDepth.Set(float64(len(b.queue)))
	return true
}
