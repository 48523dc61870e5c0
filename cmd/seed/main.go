package main

import (
	"context"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/hackgods/booking-engine/internal/db"
)

var serviceMenu = []struct {
	name     string
	duration int
	price    int64
}{
	{"Coupe", 45, 3500},
	{"Coupe + Brushing", 60, 5000},
	{"Brushing", 30, 2500},
	{"Coloration", 90, 6500},
	{"Balayage", 180, 15000},
	{"Barbe", 30, 2000},
	{"Soin", 45, 4000},
}

type window struct{ start, end int }

// Open hours used for every seeded working day, in minutes from midnight.
var openHours = []window{
	{9 * 60, 12 * 60},
	{13 * 60, 18 * 60},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	providers := envInt("SEED_PROVIDERS", 50)
	days := envInt("SEED_DAYS", 14)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := seedProviders(context.Background(), pool, providers, days); err != nil {
		log.Fatalf("seed providers: %v", err)
	}

	log.Println("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count, days int) error {
	log.Printf("seeding %d providers with %d days of availability", count, days)

	const batchSize = 10
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			providerID := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO providers (id, business_name, city, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, providerID, gofakeit.Company(), gofakeit.City())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			offered := gofakeit.Number(2, len(serviceMenu))
			for _, idx := range rand.Perm(len(serviceMenu))[:offered] {
				svc := serviceMenu[idx]
				_, err := tx.Exec(ctx, `
					INSERT INTO services (id, provider_id, name, price, duration_minutes, is_active, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, TRUE, now(), now())
				`, uuid.New(), providerID, svc.name, svc.price, svc.duration)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}

			for d := 0; d < days; d++ {
				date := today.AddDate(0, 0, d)
				if date.Weekday() == time.Sunday {
					continue
				}
				for _, w := range openHours {
					_, err := tx.Exec(ctx, `
						INSERT INTO availability_slots (id, provider_id, slot_date, start_minute, end_minute, is_available, reason, created_at, updated_at)
						VALUES ($1, $2, $3, $4, $5, TRUE, NULL, now(), now())
					`, uuid.New(), providerID, date, w.start, w.end)
					if err != nil {
						_ = tx.Rollback(ctx)
						return err
					}
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("providers seeded: %d/%d", end, count)
	}

	log.Println("providers seeded")
	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
