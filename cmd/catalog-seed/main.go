// Command catalog-seed loads a demo cafe menu into the catalog database
// for local development.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/duru-ai/converse/internal/catalog"
	"github.com/duru-ai/converse/internal/config"
)

func demoMenu(storeID, kioskType string) []catalog.Item {
	hotIced := map[string][]string{
		"temperature": {"hot", "iced"},
		"size":        {"S", "M", "L"},
	}
	return []catalog.Item{
		{
			ItemID: "itm_americano", StoreID: storeID, KioskType: kioskType,
			Name: "Americano", Category: "coffee", Price: 3500, Currency: "KRW",
			OptionGroups: hotIced, RequiredOptionGroups: []string{"temperature"},
			Available: true,
		},
		{
			ItemID: "itm_latte", StoreID: storeID, KioskType: kioskType,
			Name: "Cafe Latte", Category: "coffee", Price: 4000, Currency: "KRW",
			OptionGroups: hotIced, RequiredOptionGroups: []string{"temperature"},
			Available: true,
		},
		{
			ItemID: "itm_vanilla_latte", StoreID: storeID, KioskType: kioskType,
			Name: "Vanilla Latte", Category: "coffee", Price: 4500, Currency: "KRW",
			OptionGroups: hotIced, RequiredOptionGroups: []string{"temperature"},
			Available: true,
		},
		{
			ItemID: "itm_green_tea", StoreID: storeID, KioskType: kioskType,
			Name: "Green Tea", Category: "tea", Price: 3800, Currency: "KRW",
			OptionGroups: map[string][]string{"temperature": {"hot", "iced"}},
			Available:    true,
		},
		{
			ItemID: "itm_lemonade", StoreID: storeID, KioskType: kioskType,
			Name: "Lemonade", Category: "ade", Price: 4200, Currency: "KRW",
			OptionGroups: map[string][]string{"size": {"M", "L"}},
			Available:    true,
		},
		{
			ItemID: "itm_cheesecake", StoreID: storeID, KioskType: kioskType,
			Name: "Cheesecake", Category: "dessert", Price: 5500, Currency: "KRW",
			Allergens: []string{"milk", "egg", "wheat"},
			Available: true,
		},
		{
			ItemID: "itm_croissant", StoreID: storeID, KioskType: kioskType,
			Name: "Croissant", Category: "bakery", Price: 3200, Currency: "KRW",
			Allergens: []string{"milk", "wheat"},
			Available: true,
		},
	}
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	storeID := flag.String("store", "store_demo", "store id to seed")
	kioskType := flag.String("kiosk", "cafe", "kiosk type to seed")
	flag.Parse()

	cfg := config.Load()

	repo, err := catalog.NewSQLiteRepo(cfg.CatalogDBPath)
	if err != nil {
		logger.Fatal("failed to open catalog database", zap.Error(err))
	}
	defer func() { _ = repo.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	items := demoMenu(*storeID, *kioskType)
	if err := repo.Seed(ctx, items); err != nil {
		logger.Fatal("failed to seed catalog", zap.Error(err))
	}

	logger.Info("catalog seeded",
		zap.String("db", cfg.CatalogDBPath),
		zap.String("store", *storeID),
		zap.String("kiosk", *kioskType),
		zap.Int("items", len(items)))
}
