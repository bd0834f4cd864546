package restore

import (
	"context"
	"sync"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
)

// CompilationManager is the external collaborator notified when a
// restore cycle completes work for one of its documents. Its Refresh
// errors are swallowed by the scheduler: notification is best-effort.
type CompilationManager interface {
	Refresh(ctx context.Context, documentURI string) error
}

// queueItem is one enqueued restore request.
type queueItem struct {
	manager     CompilationManager
	documentURI string
	references  []modref.Reference
}

// notifyKey identifies a (CompilationManager, DocumentUri) notification
// target for per-cycle deduplication.
type notifyKey struct {
	manager     CompilationManager
	documentURI string
}

// Scheduler is the long-running producer/consumer queue that accepts
// asynchronous restore requests, coalesces them, invokes a Dispatcher,
// and notifies completion listeners per affected document.
//
// The wake-flag queue follows the standard Go condition-variable pattern
// (sync.Mutex + sync.Cond): a persistent server loop needs to coalesce
// many asynchronous restore requests into one pass rather than run
// synchronously within a single invocation.
type Scheduler struct {
	dispatcher *Dispatcher

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []queueItem
	woken    bool
	disposed bool
	canceled bool

	done chan struct{}
}

// NewScheduler returns a Scheduler that invokes dispatcher once per
// drain cycle.
func NewScheduler(dispatcher *Dispatcher) *Scheduler {
	s := &Scheduler{dispatcher: dispatcher, done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// RequestRestore enqueues one restore request and wakes the consumer. It
// returns an error (kind Unhandled, "scheduler is disposed") if called
// after Dispose.
func (s *Scheduler) RequestRestore(manager CompilationManager, documentURI string, references []modref.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return bicepdiag.New(bicepdiag.Unhandled, nil, "scheduler is disposed")
	}
	s.queue = append(s.queue, queueItem{manager: manager, documentURI: documentURI, references: references})
	s.woken = true
	s.cond.Signal()
	return nil
}

// Start spawns the consumer goroutine. ctx is threaded through to the
// dispatcher and notification calls. The consumer also checks ctx after
// each wake-up and before notifying, and stops if it is canceled; it
// does not observe ctx while waiting, so a canceled ctx takes effect
// only at the next wake-up. Dispose is what wakes and stops a waiting
// consumer, and a caller must call Dispose regardless of ctx's lifetime.
//
// Calling Start twice is a programmer error: the scheduler does not
// guard against it.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Dispose signals cancellation and blocks until the consumer goroutine
// has terminated. Subsequent RequestRestore calls fail.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.canceled = true
	s.woken = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	for {
		items, ok := s.waitAndDrain(ctx)
		if !ok {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if len(items) == 0 {
			continue
		}

		targets, refs := coalesce(items)
		didWork, _ := s.dispatcher.Restore(ctx, refs)
		if !didWork {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		for key := range targets {
			// Best-effort: a failed refresh must not abort notifying the
			// remaining targets or stop the consumer loop.
			_ = key.manager.Refresh(ctx, key.documentURI)
		}
	}
}

// waitAndDrain blocks until the wake flag is set (or cancellation), then
// drains the entire queue under the lock and clears the flag before
// releasing it, preserving the wake-free-after-drain invariant. The
// second return value is false if the scheduler was canceled while
// waiting, in which case the caller must stop without processing items.
func (s *Scheduler) waitAndDrain(ctx context.Context) ([]queueItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.woken && !s.canceled {
		s.cond.Wait()
	}
	if s.canceled {
		return nil, false
	}

	items := s.queue
	s.queue = nil
	s.woken = false
	return items, true
}

func coalesce(items []queueItem) (map[notifyKey]struct{}, []modref.Reference) {
	targets := make(map[notifyKey]struct{})
	var refs []modref.Reference
	for _, item := range items {
		targets[notifyKey{manager: item.manager, documentURI: item.documentURI}] = struct{}{}
		refs = append(refs, item.references...)
	}
	return targets, refs
}
