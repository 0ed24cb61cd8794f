// Command sweeper expires active offers older than a threshold.  It is
// meant to run from cron; the server itself never expires offers.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/iliyamo/estate-claims/internal/config"
	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/repository"
	"github.com/iliyamo/estate-claims/internal/service"
)

func main() {
	hours := flag.Int("hours", 72, "expire active offers placed more than this many hours ago")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	lifecycle := service.NewSaleLifecycleManager(repository.NewSaleRepo(db), repository.NewItemRepo(db))
	ledger := service.NewOfferLedger(db, lifecycle, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := ledger.ExpireStaleOffers(ctx, *hours)
	if err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	log.Printf("sweeper: expired %d offers older than %dh", n, *hours)
}
