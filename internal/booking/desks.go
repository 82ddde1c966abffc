package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
	"github.com/hackgods/civil-registry-booking/internal/calendar"
	"github.com/hackgods/civil-registry-booking/internal/notify"
	"github.com/hackgods/civil-registry-booking/internal/receipt"
	"github.com/hackgods/civil-registry-booking/internal/storage"
)

// ReceiptSink keeps issued receipts per profile until they are downloaded.
type ReceiptSink interface {
	Issue(ctx context.Context, profileID string, rc receipt.Receipt) error
}

// Desk is everything one profile's page works against. Calls through Do
// are serialized.
type Desk struct {
	mu        sync.Mutex
	ProfileID string
	store     *appointment.Store
	widget    *calendar.MemoryWidget
	ctrl      *Controller
}

// Do runs fn with exclusive access to the desk's controller.
func (d *Desk) Do(fn func(c *Controller) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d.ctrl)
}

// Events returns what the calendar currently shows.
func (d *Desk) Events() []calendar.DisplayEvent {
	return d.widget.Snapshot()
}

// Appointments returns the stored list in insertion order.
func (d *Desk) Appointments() []appointment.Appointment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.List()
}

// FindAppointment looks up one stored appointment.
func (d *Desk) FindAppointment(id string) (appointment.Appointment, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.FindByID(id)
}

type DesksConfig struct {
	KV        storage.KV
	Locker    storage.Locker
	Location  *time.Location
	Catalog   appointment.Catalog
	Clock     func() time.Time
	Board     notify.Board
	Receipts  ReceiptSink
	Scheduler Scheduler
	Logger    zerolog.Logger
	Size      int
}

// Desks loads desks on first use and keeps the most recently used ones.
// An evicted desk is rebuilt from storage and loses any open session. A
// request may still hold the evicted desk; both write through the same
// Locker, so neither overwrites the other's bookings.
type Desks struct {
	cfg   DesksConfig
	cache *lru.Cache[string, *Desk]
	loads singleflight.Group
}

func NewDesks(cfg DesksConfig) (*Desks, error) {
	if cfg.KV == nil {
		return nil, fmt.Errorf("desks: kv store is required")
	}
	if cfg.Locker == nil {
		cfg.Locker = storage.NewLocalLocker()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Catalog == nil {
		cfg.Catalog = appointment.DefaultCatalog()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Board == nil {
		cfg.Board = notify.NewMemoryBoard(4*time.Second, cfg.Clock)
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = ImmediateScheduler{}
	}
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}

	cache, err := lru.New[string, *Desk](cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("desks: create cache: %w", err)
	}
	return &Desks{cfg: cfg, cache: cache}, nil
}

// Get returns the desk of profileID, loading its appointments on first use.
// Concurrent first calls for one profile share a single load; loads of
// different profiles run in parallel.
func (d *Desks) Get(ctx context.Context, profileID string) (*Desk, error) {
	if desk, ok := d.cache.Get(profileID); ok {
		return desk, nil
	}

	v, err, _ := d.loads.Do(profileID, func() (any, error) {
		if desk, ok := d.cache.Get(profileID); ok {
			return desk, nil
		}
		// Shared by every waiter, so one caller going away must not fail the rest.
		desk, err := d.open(context.WithoutCancel(ctx), profileID)
		if err != nil {
			return nil, err
		}
		d.cache.Add(profileID, desk)
		return desk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Desk), nil
}

func (d *Desks) open(ctx context.Context, profileID string) (*Desk, error) {
	repo := storage.NewRepository(d.cfg.KV, d.cfg.Locker, storage.ProfileKey(profileID), d.cfg.Location)
	store, err := appointment.NewStore(ctx, repo,
		appointment.WithLocation(d.cfg.Location),
		appointment.WithCatalog(d.cfg.Catalog),
		appointment.WithClock(d.cfg.Clock),
	)
	if err != nil {
		return nil, fmt.Errorf("open desk %s: %w", profileID, err)
	}

	widget := calendar.NewMemoryWidget()
	calendar.Resync(widget, store.List())

	logger := d.cfg.Logger.With().Str("profile_id", profileID).Logger()
	board := d.cfg.Board
	sink := d.cfg.Receipts

	deps := Deps{
		Notifier: NotifierFunc(func(ctx context.Context, severity notify.Severity, text string) {
			if err := board.Post(ctx, profileID, severity, text); err != nil {
				logger.Warn().Err(err).Msg("failed to post message")
			}
		}),
		Scheduler: d.cfg.Scheduler,
		Logger:    logger,
	}
	if sink != nil {
		deps.Receipts = ReceiptIssuerFunc(func(ctx context.Context, rc receipt.Receipt) error {
			return sink.Issue(ctx, profileID, rc)
		})
	}

	logger.Debug().Int("appointments", store.Len()).Msg("desk loaded")
	return &Desk{
		ProfileID: profileID,
		store:     store,
		widget:    widget,
		ctrl:      NewController(store, widget, deps),
	}, nil
}

// Board exposes the message board desks post to.
func (d *Desks) Board() notify.Board {
	return d.cfg.Board
}

func (d *Desks) Catalog() appointment.Catalog {
	return d.cfg.Catalog
}

func (d *Desks) Location() *time.Location {
	return d.cfg.Location
}

func (d *Desks) Now() time.Time {
	return d.cfg.Clock()
}
