package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/civil-registry-booking/internal/appointment"
	"github.com/hackgods/civil-registry-booking/internal/config"
	"github.com/hackgods/civil-registry-booking/internal/logging"
)

var procedures = []string{
	appointment.ProcedureBirth,
	appointment.ProcedureMarriage,
	appointment.ProcedureDeath,
	appointment.ProcedureCopies,
}

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	EditRatio    float64
	DeleteRatio  float64
	ReadRatio    float64
	DaysAhead    int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking OperationMetrics
	Edit    OperationMetrics
	Delete  OperationMetrics
	List    OperationMetrics
	Events  OperationMetrics
}

// visitor is one simulated browser profile. Each worker drives its own
// visitor so sessions never interleave.
type visitor struct {
	profileID    string
	rng          *rand.Rand
	faker        *gofakeit.Faker
	appointments []string
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	metrics Metrics
	loc     *time.Location
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}
	logging.Init("simulate", baseCfg.Env, baseCfg.LogLevel)

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("edit", cfg.EditRatio).
		Float64("delete", cfg.DeleteRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		loc:    baseCfg.Location(),
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		EditRatio:    getFloat("SIM_EDIT_RATIO", 0.15),
		DeleteRatio:  getFloat("SIM_DELETE_RATIO", 0.05),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 14),
	}

	total := cfg.BookingRatio + cfg.EditRatio + cfg.DeleteRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.EditRatio /= total
		cfg.DeleteRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Info().Msg("simulation running")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			seed := time.Now().UnixNano() + int64(workerID)
			v := &visitor{
				profileID: "sim-" + uuid.NewString(),
				rng:       rand.New(rand.NewSource(seed)),
				faker:     gofakeit.New(uint64(seed)),
			}
			s.worker(ctx, v)
		}(i)
	}

	wg.Wait()
	log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, v *visitor) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := v.rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, v)
		case r < s.config.BookingRatio+s.config.EditRatio:
			s.doEdit(ctx, v)
		case r < s.config.BookingRatio+s.config.EditRatio+s.config.DeleteRatio:
			s.doDelete(ctx, v)
		default:
			if v.rng.Intn(2) == 0 {
				s.doList(ctx, v)
			} else {
				s.doEvents(ctx, v)
			}
		}
	}
}

func (s *Simulator) randomForm(v *visitor) appointment.Input {
	day := time.Now().In(s.loc).AddDate(0, 0, 1+v.rng.Intn(s.config.DaysAhead))
	hour := 9 + v.rng.Intn(6)
	minute := 30 * v.rng.Intn(2)
	return appointment.Input{
		HolderName:    v.faker.Name(),
		NationalID:    v.faker.Regex(`[A-Z]{4}[0-9]{6}[HM][A-Z]{5}[0-9]{2}`),
		ProcedureType: procedures[v.rng.Intn(len(procedures))],
		ScheduledAt:   fmt.Sprintf("%s %02d:%02d", day.Format("2006-01-02"), hour, minute),
	}
}

func (s *Simulator) doBooking(ctx context.Context, v *visitor) {
	start := time.Now()

	status, _, err := s.post(ctx, v, "/api/session", map[string]string{})
	if err != nil || status != http.StatusOK {
		s.metrics.Booking.Record(time.Since(start), false, status == http.StatusConflict)
		return
	}

	status, body, err := s.post(ctx, v, "/api/session/submit", s.randomForm(v))
	latency := time.Since(start)

	success := err == nil && status == http.StatusOK
	conflict := status == http.StatusUnprocessableEntity || status == http.StatusConflict
	if success {
		var resp struct {
			Appointment struct {
				ID string `json:"id"`
			} `json:"appointment"`
		}
		if json.Unmarshal(body, &resp) == nil && resp.Appointment.ID != "" {
			v.appointments = append(v.appointments, resp.Appointment.ID)
		}
	} else {
		// A rejected submit keeps the session open.
		_, _, _ = s.post(ctx, v, "/api/session/close", nil)
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doEdit(ctx context.Context, v *visitor) {
	if len(v.appointments) == 0 {
		return
	}
	id := v.appointments[v.rng.Intn(len(v.appointments))]

	start := time.Now()
	status, _, err := s.post(ctx, v, "/api/session/existing/"+id, nil)
	if err != nil || status != http.StatusOK {
		s.metrics.Edit.Record(time.Since(start), false, status == http.StatusConflict)
		return
	}

	status, _, err = s.post(ctx, v, "/api/session/submit", s.randomForm(v))
	latency := time.Since(start)

	success := err == nil && status == http.StatusOK
	conflict := status == http.StatusUnprocessableEntity || status == http.StatusConflict
	if !success {
		_, _, _ = s.post(ctx, v, "/api/session/close", nil)
	}
	s.metrics.Edit.Record(latency, success, conflict)
}

func (s *Simulator) doDelete(ctx context.Context, v *visitor) {
	if len(v.appointments) == 0 {
		return
	}
	idx := v.rng.Intn(len(v.appointments))
	id := v.appointments[idx]

	start := time.Now()
	status, _, err := s.post(ctx, v, "/api/session/existing/"+id, nil)
	if err != nil || status != http.StatusOK {
		s.metrics.Delete.Record(time.Since(start), false, status == http.StatusConflict)
		return
	}

	status, _, err = s.post(ctx, v, "/api/session/delete", map[string]bool{"confirm": true})
	latency := time.Since(start)

	success := err == nil && status == http.StatusOK
	if success {
		v.appointments = append(v.appointments[:idx], v.appointments[idx+1:]...)
	}
	s.metrics.Delete.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doList(ctx context.Context, v *visitor) {
	start := time.Now()
	status, err := s.get(ctx, v, "/api/appointments")
	s.metrics.List.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doEvents(ctx context.Context, v *visitor) {
	start := time.Now()
	status, err := s.get(ctx, v, "/api/calendar/events")
	s.metrics.Events.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) post(ctx context.Context, v *visitor, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Profile-ID", v.profileID)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, err
}

func (s *Simulator) get(ctx context.Context, v *visitor, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Profile-ID", v.profileID)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Edit", &s.metrics.Edit)
	printOperationReport("Delete", &s.metrics.Delete)
	printOperationReport("List appointments", &s.metrics.List)
	printOperationReport("Calendar events", &s.metrics.Events)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
