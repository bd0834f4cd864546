package restore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bicep-lang/bicep-modreg/internal/modcache"
	"github.com/bicep-lang/bicep-modreg/internal/modref"
	"github.com/bicep-lang/bicep-modreg/internal/registryset"
)

type countingManager struct {
	mu    sync.Mutex
	calls []string
}

func (m *countingManager) Refresh(_ context.Context, documentURI string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, documentURI)
	return nil
}

func (m *countingManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newCoalescingSchedulerTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cache := modcache.New(t.TempDir())
	local := &registryset.LocalRegistry{BaseDir: t.TempDir()}
	oci := &registrySetOciRegistry{puller: &fakePuller{}, cache: cache}
	set := registryset.New(local, oci)
	return NewDispatcher(Config{RegistryExperimentalEnabled: true}, set, cache, nil)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestSchedulerNotifiesAfterRestore(t *testing.T) {
	d := newCoalescingSchedulerTestDispatcher(t)
	s := NewScheduler(d)
	s.Start(context.Background())
	defer s.Dispose()

	mgr := &countingManager{}
	ref := modref.Oci{Registry: "example.azurecr.io", Repository: "a", Tag: "v1"}
	require.NoError(t, s.RequestRestore(mgr, "file:///a.bicep", []modref.Reference{ref}))

	waitFor(t, time.Second, func() bool { return mgr.count() == 1 })
	assert.Equal(t, []string{"file:///a.bicep"}, mgr.calls)
}

func TestSchedulerCoalescesMultipleEnqueuesIntoOneNotification(t *testing.T) {
	d := newCoalescingSchedulerTestDispatcher(t)
	s := NewScheduler(d)

	mgr := &countingManager{}
	ref := modref.Oci{Registry: "example.azurecr.io", Repository: "a", Tag: "v1"}

	// Enqueue before Start so the consumer drains them all in its first
	// cycle, exercising the coalescing path deterministically.
	for i := 0; i < 6; i++ {
		require.NoError(t, s.RequestRestore(mgr, "file:///a.bicep", []modref.Reference{ref}))
	}
	s.Start(context.Background())
	defer s.Dispose()

	waitFor(t, time.Second, func() bool { return mgr.count() >= 1 })
	time.Sleep(20 * time.Millisecond) // let any over-notification surface
	assert.Equal(t, 1, mgr.count())
}

func TestSchedulerRejectsEnqueueAfterDispose(t *testing.T) {
	d := newCoalescingSchedulerTestDispatcher(t)
	s := NewScheduler(d)
	s.Start(context.Background())
	s.Dispose()

	err := s.RequestRestore(&countingManager{}, "file:///a.bicep", nil)
	require.Error(t, err)
}

func TestSchedulerSkipsNotificationWhenNoWorkDone(t *testing.T) {
	d := newCoalescingSchedulerTestDispatcher(t)
	s := NewScheduler(d)
	s.Start(context.Background())
	defer s.Dispose()

	mgr := &countingManager{}
	// A Local reference never counts as restore work, so no
	// notification should fire.
	require.NoError(t, s.RequestRestore(mgr, "file:///a.bicep", []modref.Reference{modref.Local{Path: "./a.bicep"}}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, mgr.count())
}
