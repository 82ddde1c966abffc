package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
	"github.com/hackgods/civil-registry-booking/internal/config"
	"github.com/hackgods/civil-registry-booking/internal/logging"
	redisclient "github.com/hackgods/civil-registry-booking/internal/redis"
	"github.com/hackgods/civil-registry-booking/internal/storage"
)

// Office slots run every half hour from 09:00 to 15:00, Monday to Saturday.
var slotTimes = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"12:00", "12:30", "13:00", "13:30", "14:00", "14:30", "15:00",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("seed", cfg.Env, cfg.LogLevel)

	profileID := os.Getenv("SEED_PROFILE")
	if profileID == "" {
		log.Fatal().Msg("SEED_PROFILE is required")
	}
	count := 20
	if v := os.Getenv("SEED_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer rdb.Close()
	}

	kv, pool, err := storage.Open(ctx, cfg, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("storage setup error")
	}
	if pool != nil {
		defer pool.Close()
	}

	var locker storage.Locker = storage.NopLocker{}
	if rdb != nil {
		locker = redisclient.NewKeyLocker(rdb, cfg.LockTTL)
	}

	loc := cfg.Location()
	repo := storage.NewRepository(kv, locker, storage.ProfileKey(profileID), loc)
	store, err := appointment.NewStore(ctx, repo, appointment.WithLocation(loc))
	if err != nil {
		log.Fatal().Err(err).Msg("load appointments")
	}

	created, err := seedAppointments(ctx, store, gofakeit.New(0), count)
	if err != nil {
		log.Fatal().Err(err).Int("created", created).Msg("seed appointments")
	}

	log.Info().
		Str("profile_id", profileID).
		Int("created", created).
		Int("total", store.Len()).
		Msg("seed complete")
}

func seedAppointments(ctx context.Context, store *appointment.Store, faker *gofakeit.Faker, count int) (int, error) {
	procedures := store.Catalog().Sorted()
	tomorrow := time.Now().In(store.Location()).AddDate(0, 0, 1)

	created := 0
	for attempts := 0; created < count && attempts < count*10; attempts++ {
		day := tomorrow.AddDate(0, 0, faker.Number(0, 29))
		if day.Weekday() == time.Sunday {
			continue
		}

		in := appointment.Input{
			HolderName:    faker.Name(),
			NationalID:    faker.Regex(`[A-Z]{4}[0-9]{6}[HM][A-Z]{5}[0-9]{2}`),
			ProcedureType: procedures[faker.Number(0, len(procedures)-1)].Key,
			ScheduledAt:   day.Format("2006-01-02") + " " + slotTimes[faker.Number(0, len(slotTimes)-1)],
		}

		_, err := store.Create(ctx, in)
		if appointment.IsReason(err, appointment.ReasonSlotTaken) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
