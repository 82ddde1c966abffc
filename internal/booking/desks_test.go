package booking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
	"github.com/hackgods/civil-registry-booking/internal/notify"
	"github.com/hackgods/civil-registry-booking/internal/receipt"
	"github.com/hackgods/civil-registry-booking/internal/storage"
)

type sinkFunc func(ctx context.Context, profileID string, rc receipt.Receipt) error

func (f sinkFunc) Issue(ctx context.Context, profileID string, rc receipt.Receipt) error {
	return f(ctx, profileID, rc)
}

func newTestDesks(t *testing.T, kv storage.KV, size int) (*Desks, *notify.MemoryBoard, *sync.Map) {
	t.Helper()
	board := notify.NewMemoryBoard(4*time.Second, testClock)
	issued := &sync.Map{}
	desks, err := NewDesks(DesksConfig{
		KV:       kv,
		Location: testLoc,
		Clock:    testClock,
		Board:    board,
		Receipts: sinkFunc(func(ctx context.Context, profileID string, rc receipt.Receipt) error {
			issued.Store(profileID, rc)
			return nil
		}),
		Logger: zerolog.Nop(),
		Size:   size,
	})
	require.NoError(t, err)
	return desks, board, issued
}

func book(t *testing.T, desk *Desk, form appointment.Input) appointment.Appointment {
	t.Helper()
	var appt appointment.Appointment
	err := desk.Do(func(c *Controller) error {
		if _, err := c.OpenNew(context.Background(), ""); err != nil {
			return err
		}
		var err error
		appt, err = c.Submit(context.Background(), form)
		return err
	})
	require.NoError(t, err)
	return appt
}

func TestDesksIsolateProfiles(t *testing.T) {
	ctx := context.Background()
	desks, board, issued := newTestDesks(t, storage.NewMemoryKV(), 8)

	a, err := desks.Get(ctx, "alice")
	require.NoError(t, err)
	b, err := desks.Get(ctx, "bob")
	require.NoError(t, err)

	book(t, a, anaForm())

	// The same slot is free for another profile.
	book(t, b, anaForm())

	assert.Len(t, a.Appointments(), 1)
	assert.Len(t, b.Events(), 1)

	msg, ok, err := board.Current(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, notify.SeveritySuccess, msg.Severity)

	_, ok = issued.Load("alice")
	assert.True(t, ok)
	_, ok = issued.Load("bob")
	assert.True(t, ok)
}

func TestDesksReturnSameDesk(t *testing.T) {
	ctx := context.Background()
	desks, _, _ := newTestDesks(t, storage.NewMemoryKV(), 8)

	first, err := desks.Get(ctx, "alice")
	require.NoError(t, err)
	second, err := desks.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEvictedDeskReloadsFromStorage(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	desks, _, _ := newTestDesks(t, kv, 1)

	alice, err := desks.Get(ctx, "alice")
	require.NoError(t, err)
	appt := book(t, alice, anaForm())

	_, err = desks.Get(ctx, "bob")
	require.NoError(t, err)

	reloaded, err := desks.Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotSame(t, alice, reloaded)

	got, ok := reloaded.FindAppointment(appt.ID)
	require.True(t, ok)
	assert.Equal(t, "Ana Lopez", got.HolderName)

	events := reloaded.Events()
	require.Len(t, events, 1)
	assert.Equal(t, appt.ID, events[0].ID)
}

func tryBook(desk *Desk, form appointment.Input) error {
	return desk.Do(func(c *Controller) error {
		if _, err := c.OpenNew(context.Background(), ""); err != nil {
			return err
		}
		_, err := c.Submit(context.Background(), form)
		return err
	})
}

func TestEvictedDeskStillInUseKeepsBothBookings(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	desks, _, _ := newTestDesks(t, kv, 1)

	stale, err := desks.Get(ctx, "alice")
	require.NoError(t, err)
	_, err = desks.Get(ctx, "bob")
	require.NoError(t, err)
	fresh, err := desks.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotSame(t, stale, fresh)

	book(t, stale, anaForm())
	later := anaForm()
	later.ScheduledAt = "2025-06-10 11:00"
	book(t, fresh, later)

	persisted, err := storage.NewRepository(kv, nil, storage.ProfileKey("alice"), testLoc).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)

	assert.Len(t, fresh.Appointments(), 2)
	assert.Len(t, fresh.Events(), 2)
}

func TestEvictedDeskStillInUseCannotDoubleBook(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	desks, board, _ := newTestDesks(t, kv, 1)

	stale, err := desks.Get(ctx, "alice")
	require.NoError(t, err)
	_, err = desks.Get(ctx, "bob")
	require.NoError(t, err)
	fresh, err := desks.Get(ctx, "alice")
	require.NoError(t, err)

	book(t, stale, anaForm())

	err = tryBook(fresh, anaForm())
	assert.True(t, appointment.IsReason(err, appointment.ReasonSlotTaken), "got %v", err)

	msg, ok, err := board.Current(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, notify.SeverityError, msg.Severity)

	// The rejected desk now shows the booking it collided with.
	require.Len(t, fresh.Events(), 1)
	persisted, err := storage.NewRepository(kv, nil, storage.ProfileKey("alice"), testLoc).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

type gatedKV struct {
	*storage.MemoryKV
	key     string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	gets    atomic.Int32
}

func (g *gatedKV) Get(ctx context.Context, key string) ([]byte, error) {
	if key == g.key {
		g.gets.Add(1)
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.MemoryKV.Get(ctx, key)
}

func newGatedKV(profileID string) *gatedKV {
	return &gatedKV{
		MemoryKV: storage.NewMemoryKV(),
		key:      storage.ProfileKey(profileID),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func TestSlowLoadDoesNotBlockOtherProfiles(t *testing.T) {
	ctx := context.Background()
	kv := newGatedKV("slow")
	desks, _, _ := newTestDesks(t, kv, 8)

	slowDone := make(chan error, 1)
	go func() {
		_, err := desks.Get(ctx, "slow")
		slowDone <- err
	}()
	<-kv.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := desks.Get(ctx, "fast")
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loading one profile waited on another profile's storage")
	}

	close(kv.release)
	require.NoError(t, <-slowDone)
}

func TestConcurrentFirstGetsShareOneLoad(t *testing.T) {
	ctx := context.Background()
	kv := newGatedKV("alice")
	desks, _, _ := newTestDesks(t, kv, 8)

	const callers = 8
	got := make(chan *Desk, callers)
	for i := 0; i < callers; i++ {
		go func() {
			desk, err := desks.Get(ctx, "alice")
			assert.NoError(t, err)
			got <- desk
		}()
	}
	<-kv.entered
	time.Sleep(20 * time.Millisecond)
	close(kv.release)

	first := <-got
	require.NotNil(t, first)
	for i := 1; i < callers; i++ {
		assert.Same(t, first, <-got)
	}
	assert.Equal(t, int32(1), kv.gets.Load())
}

func TestNewDesksRequiresKV(t *testing.T) {
	_, err := NewDesks(DesksConfig{})
	assert.Error(t, err)
}
