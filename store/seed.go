package store

import (
	"time"

	"p9e.in/zeladoria/models"
)

// SeedGabineteID owns the example reports so a fresh install shows data to
// agents of the default gabinete as well as to admins.
const SeedGabineteID = "gabinete-1"

// SeedReports returns the example reports written to an empty store. Dates
// are relative to now so the dashboard always shows recent activity.
func SeedReports(now time.Time) []models.Report {
	day := 24 * time.Hour
	agent := &models.Agent{ID: "seed", Name: "Equipe de Campo", GabineteID: SeedGabineteID}
	at := func(ago time.Duration) models.JSONTime { return models.StampNow(now.Add(-ago)) }

	resolvedAt := at(1 * day)
	progressAt := at(2 * day)

	reports := []models.Report{
		{
			ID:          1,
			Type:        "Buraco na via",
			Description: "Buraco profundo na faixa da direita, próximo ao semáforo.",
			Address:     "Rua das Palmeiras, 245 - Centro",
			Coordinates: &models.Coordinates{Lat: -23.5489, Lng: -46.6388},
			Status:      models.StatusPending,
			CreatedAt:   at(3 * day),
			Complainant: &models.Complainant{
				FullName: "Maria Aparecida Souza",
				Phone:    "(11) 98765-4321",
				WhatsApp: "(11) 98765-4321",
				Address:  "Rua das Palmeiras, 250 - Centro",
			},
		},
		{
			ID:          2,
			Type:        "Árvore caída",
			Description: "Árvore de grande porte caída sobre a calçada após a chuva.",
			Address:     "Av. Brasil, 1020 - Jardim América",
			Coordinates: &models.Coordinates{Lat: -23.5614, Lng: -46.6559},
			Status:      models.StatusInProgress,
			CreatedAt:   at(5 * day),
			UpdatedAt:   &progressAt,
			Complainant: &models.Complainant{
				FullName: "José Carlos Lima",
				Phone:    "(11) 91234-5678",
				Address:  "Av. Brasil, 1000 - Jardim América",
			},
		},
		{
			ID:          3,
			Type:        "Lâmpada queimada",
			Description: "Poste com lâmpada queimada deixando a praça às escuras.",
			Address:     "Praça da Matriz, s/n - Centro",
			Coordinates: &models.Coordinates{Lat: -23.5505, Lng: -46.6333},
			Status:      models.StatusResolved,
			CreatedAt:   at(7 * day),
			UpdatedAt:   &resolvedAt,
			Resolution: &models.Resolution{
				Description: "Lâmpada substituída por modelo LED.",
				Responsible: "Equipe de Iluminação Pública",
				Date:        resolvedAt,
			},
		},
		{
			ID:          4,
			Type:        "Lixo acumulado",
			Description: "Descarte irregular de entulho em terreno baldio.",
			Address:     "Rua Sete de Setembro, 78 - Vila Nova",
			Coordinates: &models.Coordinates{Lat: -23.5432, Lng: -46.6291},
			Status:      models.StatusPending,
			CreatedAt:   at(1 * day),
		},
		{
			ID:          5,
			Type:        "Vazamento de água",
			Description: "Vazamento constante na tubulação da calçada.",
			Address:     "Rua XV de Novembro, 310 - Centro",
			Status:      models.StatusPending,
			CreatedAt:   at(4 * time.Hour),
		},
	}

	for i := range reports {
		reports[i].Photos = []string{}
		a := *agent
		reports[i].Agent = &a
	}
	return reports
}
