package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/config"
	domainInventory "github.com/Zhima-Mochi/storefront/internal/domain/inventory"
	domainUser "github.com/Zhima-Mochi/storefront/internal/domain/user"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/docstore"
)

type seedData struct {
	Products []*domainInventory.Product `json:"products"`
	Users    []*domainUser.User         `json:"users"`
}

// checkSeedBackend refuses the in-memory store for the one-shot seed command:
// its data would vanish when the command exits.
func checkSeedBackend(cfg config.Config) error {
	if cfg.Store.Backend == config.StoreMemory {
		return fmt.Errorf("seed: STORE_BACKEND=%s keeps nothing after exit; set SEED_FILE when running serve instead", config.StoreMemory)
	}
	return nil
}

// seedFromFile upserts the products and users listed in path.
func seedFromFile(ctx context.Context, st *stores, path string) (int, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("seed: read %s: %w", path, err)
	}
	var data seedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0, 0, fmt.Errorf("seed: parse %s: %w", path, err)
	}

	now := time.Now().UTC()
	products := docstore.NewProductRepository(st.products)
	for _, p := range data.Products {
		if p.ID == "" {
			return 0, 0, fmt.Errorf("seed: product without id")
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
		if err := products.Put(ctx, p); err != nil {
			return 0, 0, fmt.Errorf("seed: product %s: %w", p.ID, err)
		}
	}
	users := docstore.NewUserRepository(st.users)
	for _, u := range data.Users {
		if u.ID == "" {
			return 0, 0, fmt.Errorf("seed: user without id")
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		if err := users.Put(ctx, u); err != nil {
			return 0, 0, fmt.Errorf("seed: user %s: %w", u.ID, err)
		}
	}
	return len(data.Products), len(data.Users), nil
}
