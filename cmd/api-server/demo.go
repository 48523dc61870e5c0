package main

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/booking-engine/internal/api"
	"github.com/hackgods/booking-engine/internal/catalog"
	"github.com/hackgods/booking-engine/internal/identity"
)

const demoTokenTTL = 24 * time.Hour

var demoServiceNames = []string{"Coupe", "Balayage", "Brushing", "Coloration", "Barbe", "Soin"}

// seedDemoCatalog fills the in-memory catalog with one provider and a few
// services. Outside prod it also logs bearer tokens for a provider, a client
// and an admin so the API can be exercised by hand.
func seedDemoCatalog(cat *catalog.MemoryCatalog, tokens *api.TokenService, env string, logger *zap.Logger) {
	provider := catalog.Provider{
		ID:           uuid.New(),
		BusinessName: gofakeit.Company(),
		City:         gofakeit.City(),
	}
	cat.PutProvider(provider)

	for _, d := range []int{30, 45, 60, 90} {
		svc := catalog.Service{
			ID:              uuid.New(),
			ProviderID:      provider.ID,
			Name:            gofakeit.RandomString(demoServiceNames),
			Price:           int64(gofakeit.Number(20, 200)) * 100,
			DurationMinutes: d,
			IsActive:        true,
		}
		cat.PutService(svc)
		logger.Info("demo service",
			zap.String("service_id", svc.ID.String()),
			zap.String("name", svc.Name),
			zap.Int("duration_minutes", d))
	}

	if env == "prod" {
		return
	}

	actors := []identity.Actor{
		{ID: provider.ID, Role: identity.RoleProvider},
		{ID: uuid.New(), Role: identity.RoleClient},
		{ID: uuid.New(), Role: identity.RoleAdmin},
	}
	for _, a := range actors {
		token, err := tokens.Issue(a, demoTokenTTL)
		if err != nil {
			logger.Warn("issue demo token", zap.Error(err))
			continue
		}
		logger.Info("demo token",
			zap.String("role", string(a.Role)),
			zap.String("actor_id", a.ID.String()),
			zap.String("token", token))
	}
}
