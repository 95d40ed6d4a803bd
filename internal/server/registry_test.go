package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingHandle captures delivered lines for assertions.
type recordingHandle struct {
	mu    sync.Mutex
	lines []ChatLine
}

func (h *recordingHandle) Deliver(line ChatLine) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
	return true
}

func (h *recordingHandle) delivered() []ChatLine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ChatLine(nil), h.lines...)
}

// rejectingHandle models a recipient whose outbound buffer is full.
type rejectingHandle struct{}

func (rejectingHandle) Deliver(ChatLine) bool { return false }

func TestRegistry_Register_DuplicateName(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.NoError(registry.Register("Alice", &recordingHandle{}))

	// A second registrant racing on the same name must lose.
	req.ErrorIs(registry.Register("Alice", &recordingHandle{}), ErrNameTaken)
	req.Equal(1, registry.Count())
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.NoError(registry.Register("Alice", &recordingHandle{}))

	registry.Unregister("Alice")
	registry.Unregister("Alice")
	registry.Unregister("never-registered")

	req.Zero(registry.Count())
}

func TestRegistry_Rename_MovesHandle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	handle := &recordingHandle{}

	req.NoError(registry.Register("User#0", handle))

	// When the session renames itself
	req.NoError(registry.Rename("User#0", "Bob"))

	// Then the old key is gone and the same handle answers to the new key
	req.ElementsMatch([]string{"Bob"}, registry.Names())
	registry.Broadcast(ChatLine{Text: "ping", Color: "#000000"})
	req.Len(handle.delivered(), 1)
}

func TestRegistry_Rename_TargetTaken_LeavesOldIntact(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.NoError(registry.Register("Alice", &recordingHandle{}))
	req.NoError(registry.Register("Bob", &recordingHandle{}))

	req.ErrorIs(registry.Rename("Alice", "Bob"), ErrNameTaken)

	// No partial removal: both original entries survive.
	req.ElementsMatch([]string{"Alice", "Bob"}, registry.Names())
}

func TestRegistry_Rename_ToOwnName(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.NoError(registry.Register("Alice", &recordingHandle{}))

	req.ErrorIs(registry.Rename("Alice", "Alice"), ErrNameTaken)
	req.ElementsMatch([]string{"Alice"}, registry.Names())
}

func TestRegistry_Rename_UnknownOldName(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.ErrorIs(registry.Rename("ghost", "Bob"), ErrUnknownName)
	req.Zero(registry.Count())
}

func TestRegistry_Broadcast_DeliversToEveryoneIncludingSender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	handles := make([]*recordingHandle, 5)
	for i := range handles {
		handles[i] = &recordingHandle{}
		req.NoError(registry.Register(fmt.Sprintf("User#%d", i), handles[i]))
	}

	delivered := registry.Broadcast(ChatLine{Text: "User#0: hello", Color: "#000000"})

	req.Equal(5, delivered)
	for _, handle := range handles {
		req.Len(handle.delivered(), 1)
		req.Equal("User#0: hello", handle.delivered()[0].Text)
	}
}

func TestRegistry_Broadcast_SlowRecipientDoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	healthy := &recordingHandle{}

	req.NoError(registry.Register("full", rejectingHandle{}))
	req.NoError(registry.Register("healthy", healthy))

	delivered := registry.Broadcast(ChatLine{Text: "hi", Color: "#000000"})

	// The backlogged recipient drops the line; the other still gets it.
	req.Equal(1, delivered)
	req.Len(healthy.delivered(), 1)
}

func TestRegistry_Broadcast_PreservesSingleSenderOrder(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	observer := &recordingHandle{}

	req.NoError(registry.Register("observer", observer))

	registry.Broadcast(ChatLine{Text: "L1", Color: "#000000"})
	registry.Broadcast(ChatLine{Text: "L2", Color: "#000000"})

	lines := observer.delivered()
	req.Len(lines, 2)
	req.Equal("L1", lines[0].Text)
	req.Equal("L2", lines[1].Text)
}

func TestRegistry_ConcurrentRegister_ExactlyOneWinner(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	const racers = 32
	var wg sync.WaitGroup
	var successes sync.Map

	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(id int) {
			defer wg.Done()
			if err := registry.Register("contested", &recordingHandle{}); err == nil {
				successes.Store(id, true)
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	successes.Range(func(_, _ any) bool {
		winners++
		return true
	})
	req.Equal(1, winners)
	req.Equal(1, registry.Count())
}

func TestRegistry_ConcurrentRename_UniqueKeys(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	const sessions = 16
	for i := 0; i < sessions; i++ {
		req.NoError(registry.Register(fmt.Sprintf("User#%d", i), &recordingHandle{}))
	}

	// All sessions race to claim the same new name; one wins, the rest
	// keep their entries untouched.
	var wg sync.WaitGroup
	wg.Add(sessions)
	for i := 0; i < sessions; i++ {
		go func(i int) {
			defer wg.Done()
			_ = registry.Rename(fmt.Sprintf("User#%d", i), "popular")
		}(i)
	}
	wg.Wait()

	names := registry.Names()
	req.Len(names, sessions)
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		req.False(seen[name], "duplicate key %q", name)
		seen[name] = true
	}
	req.True(seen["popular"])
}
