package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
)

// Locker serializes writers of one key. redisclient.KeyLocker is the
// multi-instance implementation.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// NopLocker runs fn directly. Only safe when one writer owns each key.
type NopLocker struct{}

func (NopLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// LocalLocker serializes writers of the same key inside one process. Unlike
// redisclient.KeyLocker it waits for the holder instead of refusing.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kl := l.acquire(key)
	defer l.release(key, kl)
	return fn(ctx)
}

func (l *LocalLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return kl
}

func (l *LocalLocker) release(key string, kl *keyLock) {
	kl.mu.Unlock()

	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// ProfileKey names the key holding a profile's appointment list.
func ProfileKey(profileID string) string {
	return fmt.Sprintf("profile:%s:scheduledAppointments", profileID)
}

type record struct {
	ID            string `json:"id"`
	NationalID    string `json:"nationalId"`
	ScheduledAt   string `json:"scheduledAt"`
	HolderName    string `json:"holderName"`
	ProcedureType string `json:"procedureType"`
}

// Repository persists a whole appointment list under a single key.
type Repository struct {
	kv     KV
	locker Locker
	key    string
	loc    *time.Location
}

func NewRepository(kv KV, locker Locker, key string, loc *time.Location) *Repository {
	if locker == nil {
		locker = NopLocker{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Repository{kv: kv, locker: locker, key: key, loc: loc}
}

// Load treats a missing key as an empty list.
func (r *Repository) Load(ctx context.Context) ([]appointment.Appointment, error) {
	data, err := r.kv.Get(ctx, r.key)
	if errors.Is(err, ErrKeyNotFound) {
		return []appointment.Appointment{}, nil
	}
	if err != nil {
		return nil, err
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key, err)
	}

	list := make([]appointment.Appointment, 0, len(records))
	for _, rec := range records {
		at, err := appointment.ParseSlot(rec.ScheduledAt, r.loc)
		if err != nil {
			return nil, fmt.Errorf("decode %s record %s: %w", r.key, rec.ID, err)
		}
		list = append(list, appointment.Appointment{
			ID:            rec.ID,
			HolderName:    rec.HolderName,
			NationalID:    rec.NationalID,
			ProcedureType: rec.ProcedureType,
			ScheduledAt:   at,
		})
	}
	return list, nil
}

// Mutate holds the key's lock across reading the list, running fn and
// writing back what fn returns. An error from fn skips the write and is
// returned unwrapped.
func (r *Repository) Mutate(ctx context.Context, fn func(current []appointment.Appointment) ([]appointment.Appointment, error)) error {
	return r.locker.WithLock(ctx, r.key, func(ctx context.Context) error {
		current, err := r.Load(ctx)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		data, err := r.encode(next)
		if err != nil {
			return err
		}
		return r.kv.Set(ctx, r.key, data)
	})
}

func (r *Repository) encode(list []appointment.Appointment) ([]byte, error) {
	records := make([]record, 0, len(list))
	for _, a := range list {
		records = append(records, record{
			ID:            a.ID,
			NationalID:    a.NationalID,
			ScheduledAt:   a.Slot(),
			HolderName:    a.HolderName,
			ProcedureType: a.ProcedureType,
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.key, err)
	}
	return data, nil
}
