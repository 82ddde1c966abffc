package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
	"github.com/hackgods/civil-registry-booking/internal/db"
	redisclient "github.com/hackgods/civil-registry-booking/internal/redis"
)

var testLoc = time.FixedZone("CST", -6*3600)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()
	key := ProfileKey(uuid.NewString())

	_, err := kv.Get(ctx, key)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, key, []byte(`[{"id":"1"}]`)))
	got, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(got))

	require.NoError(t, kv.Set(ctx, key, []byte(`[]`)))
	got, err = kv.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(got))
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestFileKV(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	exerciseKV(t, kv)
}

func TestFileKVKeepsKeysInsideDir(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Set(context.Background(), "../../escape", []byte(`[]`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRedisKV(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	exerciseKV(t, NewRedisKV(rdb))
}

func TestPgKV(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	kv := NewPgKV(pool)
	require.NoError(t, kv.EnsureSchema(ctx))
	exerciseKV(t, kv)
}

func sampleList(t *testing.T) []appointment.Appointment {
	t.Helper()
	first, err := appointment.ParseSlot("2025-06-10 10:00", testLoc)
	require.NoError(t, err)
	second, err := appointment.ParseSlot("2025-06-09 09:30", testLoc)
	require.NoError(t, err)

	return []appointment.Appointment{
		{ID: "b", HolderName: "Ana Lopez", NationalID: "ABCD123456HVZLNN09", ProcedureType: "marriage", ScheduledAt: first},
		{ID: "a", HolderName: "Luis Perez", NationalID: "PELU800101HVZRRS01", ProcedureType: "birth", ScheduledAt: second},
	}
}

func replaceWith(list []appointment.Appointment) func([]appointment.Appointment) ([]appointment.Appointment, error) {
	return func([]appointment.Appointment) ([]appointment.Appointment, error) {
		return list, nil
	}
}

func TestRepositoryMissingKeyIsEmpty(t *testing.T) {
	repo := NewRepository(NewMemoryKV(), nil, ProfileKey("p1"), testLoc)

	list, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRepositoryRoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewRepository(kv, nil, ProfileKey("p1"), testLoc)
	want := sampleList(t)

	require.NoError(t, repo.Mutate(context.Background(), replaceWith(want)))
	got, err := repo.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestRepositoryRecordFormat(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewRepository(kv, nil, ProfileKey("p1"), testLoc)
	require.NoError(t, repo.Mutate(context.Background(), replaceWith(sampleList(t)[:1])))

	raw, err := kv.Get(context.Background(), "profile:p1:scheduledAppointments")
	require.NoError(t, err)
	assert.JSONEq(t, `[{
		"id": "b",
		"nationalId": "ABCD123456HVZLNN09",
		"scheduledAt": "2025-06-10 10:00",
		"holderName": "Ana Lopez",
		"procedureType": "marriage"
	}]`, string(raw))
}

func TestRepositoryCorruptValue(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), "k", []byte("not json")))

	_, err := NewRepository(kv, nil, "k", testLoc).Load(context.Background())
	assert.Error(t, err)
}

type refusingLocker struct{}

func (refusingLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return errors.New("busy")
}

func TestRepositoryMutateHonoursLocker(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewRepository(kv, refusingLocker{}, "k", testLoc)

	err := repo.Mutate(context.Background(), replaceWith(sampleList(t)))
	assert.Error(t, err)

	_, err = kv.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRepositoryMutateSeesPersistedList(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewRepository(kv, nil, ProfileKey("p1"), testLoc)
	list := sampleList(t)
	require.NoError(t, repo.Mutate(context.Background(), replaceWith(list[:1])))

	var seen []appointment.Appointment
	err := NewRepository(kv, nil, ProfileKey("p1"), testLoc).Mutate(context.Background(),
		func(current []appointment.Appointment) ([]appointment.Appointment, error) {
			seen = current
			return append(current, list[1]), nil
		})
	require.NoError(t, err)

	assert.Equal(t, list[:1], seen)
	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, list, got)
}

func TestRepositoryMutateRejectionSkipsWrite(t *testing.T) {
	kv := NewMemoryKV()
	repo := NewRepository(kv, nil, ProfileKey("p1"), testLoc)
	rejected := errors.New("slot taken")

	err := repo.Mutate(context.Background(), func([]appointment.Appointment) ([]appointment.Appointment, error) {
		return nil, rejected
	})

	assert.Equal(t, rejected, err)
	_, err = kv.Get(context.Background(), ProfileKey("p1"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestLocalLockerSerializesSameKey(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, "k", func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	second := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, "k", func(ctx context.Context) error {
			close(second)
			return nil
		})
	}()

	// Other keys are not held up.
	require.NoError(t, locker.WithLock(ctx, "other", func(ctx context.Context) error { return nil }))

	select {
	case <-second:
		t.Fatal("second writer ran while the key was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("second writer never ran")
	}
}

func TestLocalLockerConcurrentWritersKeepEveryBooking(t *testing.T) {
	kv := NewMemoryKV()
	locker := NewLocalLocker()
	list := sampleList(t)

	var wg sync.WaitGroup
	for _, a := range list {
		wg.Add(1)
		go func(a appointment.Appointment) {
			defer wg.Done()
			repo := NewRepository(kv, locker, ProfileKey("p1"), testLoc)
			err := repo.Mutate(context.Background(), func(current []appointment.Appointment) ([]appointment.Appointment, error) {
				return append(current, a), nil
			})
			assert.NoError(t, err)
		}(a)
	}
	wg.Wait()

	got, err := NewRepository(kv, nil, ProfileKey("p1"), testLoc).Load(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, list, got)
}

func TestStoresSharingRedisDoNotDoubleBook(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	kv := NewRedisKV(rdb)
	locker := redisclient.NewKeyLocker(rdb, time.Second)
	ctx := context.Background()
	clock := appointment.WithClock(func() time.Time { return time.Date(2025, 6, 1, 13, 30, 0, 0, testLoc) })

	openStore := func() *appointment.Store {
		repo := NewRepository(kv, locker, ProfileKey("shared"), testLoc)
		s, err := appointment.NewStore(ctx, repo, appointment.WithLocation(testLoc), clock)
		require.NoError(t, err)
		return s
	}
	first, second := openStore(), openStore()

	in := appointment.Input{
		HolderName:    "Ana Lopez",
		NationalID:    "ABCD123456HVZLNN09",
		ProcedureType: appointment.ProcedureMarriage,
		ScheduledAt:   "2025-06-10 10:00",
	}
	_, err := first.Create(ctx, in)
	require.NoError(t, err)

	_, err = second.Create(ctx, in)
	assert.True(t, appointment.IsReason(err, appointment.ReasonSlotTaken), "got %v", err)

	in.ScheduledAt = "2025-06-10 11:00"
	_, err = second.Create(ctx, in)
	require.NoError(t, err)

	persisted, err := NewRepository(kv, nil, ProfileKey("shared"), testLoc).Load(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, "2025-06-10 10:00", persisted[0].Slot())
	assert.Equal(t, "2025-06-10 11:00", persisted[1].Slot())
	assert.False(t, mr.Exists("lock:"+ProfileKey("shared")))
}
