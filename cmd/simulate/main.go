package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"

	"github.com/hackgods/booking-engine/internal/api"
	"github.com/hackgods/booking-engine/internal/config"
	"github.com/hackgods/booking-engine/internal/db"
	"github.com/hackgods/booking-engine/internal/identity"
)

type SimConfig struct {
	APIBaseURL   string        `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	Duration     time.Duration `envconfig:"DURATION" default:"30s"`
	Workers      int           `envconfig:"WORKERS" default:"10"`
	Clients      int           `envconfig:"CLIENTS" default:"500"`
	BookingRatio float64       `envconfig:"BOOKING_RATIO" default:"0.5"`
	ConfirmRatio float64       `envconfig:"CONFIRM_RATIO" default:"0.2"`
	ReadRatio    float64       `envconfig:"READ_RATIO" default:"0.3"`
	SlotLimit    int           `envconfig:"SLOT_LIMIT" default:"2000"`

	// Hot concentrates bookings on this many slots to provoke conflicts.
	Hot int `envconfig:"HOT_SLOTS" default:"0"`
}

type service struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Duration   int
}

type slot struct {
	ProviderID uuid.UUID
	Date       time.Time
	Start, End int
}

type booked struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	ClientID   uuid.UUID
}

type DataPool struct {
	Services map[uuid.UUID][]service
	Slots    []slot
	Clients  []uuid.UUID

	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.IntN(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pct := func(p int) time.Duration {
		idx := min(len(latencies)*p/100, len(latencies)-1)
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pct(50), pct(95)
}

type Metrics struct {
	Booking      OperationMetrics
	Confirm      OperationMetrics
	ReadByID     OperationMetrics
	ListByClient OperationMetrics
	ListProvider OperationMetrics
}

type Simulator struct {
	config SimConfig
	loc    *time.Location
	pool   *DataPool
	tokens *api.TokenService
	client *http.Client

	tokenMu  sync.Mutex
	tokenFor map[identity.Actor]string

	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}
	if baseCfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required (set in .env or environment)")
	}

	var cfg SimConfig
	if err := envconfig.Process("SIM", &cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := normalize(&cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f confirm=%.2f read=%.2f hot=%d",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.ConfirmRatio, cfg.ReadRatio, cfg.Hot)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d providers, %d slots, %d clients",
		len(dataPool.Services), len(dataPool.Slots), len(dataPool.Clients))

	sim := &Simulator{
		config:   cfg,
		loc:      baseCfg.Location,
		pool:     dataPool,
		tokens:   api.NewTokenService(baseCfg.JWTSecret),
		client:   &http.Client{Timeout: 10 * time.Second},
		tokenFor: make(map[identity.Actor]string),
	}

	sim.Run()
	sim.PrintReport()
}

func normalize(cfg *SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.Clients <= 0 {
		return errors.New("SIM_CLIENTS must be > 0")
	}
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{Services: make(map[uuid.UUID][]service)}

	rows, err := pool.Query(ctx, `
		SELECT id, provider_id, duration_minutes
		FROM services
		WHERE is_active AND deleted_at IS NULL
	`)
	if err != nil {
		return nil, errors.Wrap(err, "load services")
	}
	for rows.Next() {
		var s service
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.Duration); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Services[s.ProviderID] = append(dataPool.Services[s.ProviderID], s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `
		SELECT provider_id, slot_date, start_minute, end_minute
		FROM availability_slots
		WHERE is_available AND slot_date > CURRENT_DATE
		ORDER BY slot_date, start_minute
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, errors.Wrap(err, "load slots")
	}
	for rows.Next() {
		var s slot
		if err := rows.Scan(&s.ProviderID, &s.Date, &s.Start, &s.End); err != nil {
			rows.Close()
			return nil, err
		}
		if len(dataPool.Services[s.ProviderID]) > 0 {
			dataPool.Slots = append(dataPool.Slots, s)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Slots) == 0 {
		return nil, errors.New("no bookable slots loaded; run cmd/seed first")
	}
	if cfg.Hot > 0 && cfg.Hot < len(dataPool.Slots) {
		dataPool.Slots = dataPool.Slots[:cfg.Hot]
	}

	for range cfg.Clients {
		dataPool.Clients = append(dataPool.Clients, uuid.New())
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := range s.config.Workers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			default:
				switch rng.IntN(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByClient(ctx, rng)
				case 2:
					s.doListByProvider(ctx, rng)
				}
			}
		}
	}
}

// token caches one bearer token per simulated actor.
func (s *Simulator) token(actor identity.Actor) string {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	if t, ok := s.tokenFor[actor]; ok {
		return t
	}
	t, err := s.tokens.Issue(actor, s.config.Duration+time.Hour)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	s.tokenFor[actor] = t
	return t
}

func (s *Simulator) call(ctx context.Context, actor identity.Actor, method, path string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(actor))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.IntN(len(s.pool.Slots))]
	services := s.pool.Services[sl.ProviderID]
	svc := services[rng.IntN(len(services))]
	if sl.End-sl.Start < svc.Duration {
		return
	}

	// Quarter-hour starts that fit inside the slot.
	starts := (sl.End-sl.Start-svc.Duration)/15 + 1
	minute := sl.Start + 15*rng.IntN(starts)
	day := time.Date(sl.Date.Year(), sl.Date.Month(), sl.Date.Day(), 0, 0, 0, 0, s.loc)
	scheduledAt := day.Add(time.Duration(minute) * time.Minute)

	clientID := s.pool.Clients[rng.IntN(len(s.pool.Clients))]
	client := identity.Actor{ID: clientID, Role: identity.RoleClient}

	var out api.AppointmentResponse
	start := time.Now()
	status, err := s.call(ctx, client, http.MethodPost, "/appointments", api.CreateAppointmentRequest{
		ServiceID:   svc.ID.String(),
		ScheduledAt: scheduledAt,
	}, &out)
	s.metrics.Booking.Record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated {
		s.pool.AddAppointment(booked{ID: out.ID, ProviderID: sl.ProviderID, ClientID: clientID})
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	provider := identity.Actor{ID: b.ProviderID, Role: identity.RoleProvider}

	start := time.Now()
	status, err := s.call(ctx, provider, http.MethodPatch,
		fmt.Sprintf("/appointments/%s/status", b.ID), api.UpdateStatusRequest{Status: "confirmed"}, nil)
	s.metrics.Confirm.Record(time.Since(start), status, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	client := identity.Actor{ID: b.ClientID, Role: identity.RoleClient}

	start := time.Now()
	status, err := s.call(ctx, client, http.MethodGet, "/appointments/"+b.ID.String(), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), status, err)
}

func (s *Simulator) doListByClient(ctx context.Context, rng *rand.Rand) {
	client := identity.Actor{ID: s.pool.Clients[rng.IntN(len(s.pool.Clients))], Role: identity.RoleClient}

	start := time.Now()
	status, err := s.call(ctx, client, http.MethodGet, "/appointments?page=1&page_size=20", nil, nil)
	s.metrics.ListByClient.Record(time.Since(start), status, err)
}

func (s *Simulator) doListByProvider(ctx context.Context, rng *rand.Rand) {
	sl := s.pool.Slots[rng.IntN(len(s.pool.Slots))]
	provider := identity.Actor{ID: sl.ProviderID, Role: identity.RoleProvider}

	start := time.Now()
	status, err := s.call(ctx, provider, http.MethodGet, "/appointments?status=pending", nil, nil)
	s.metrics.ListProvider.Record(time.Since(start), status, err)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by client", &s.metrics.ListByClient)
	printOperationReport("List by provider", &s.metrics.ListProvider)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
