package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hobbyfetch/cardharvest/internal/config"
	"github.com/hobbyfetch/cardharvest/internal/ebay"
	"github.com/hobbyfetch/cardharvest/internal/logger"
	"github.com/hobbyfetch/cardharvest/internal/pipeline"
	"github.com/hobbyfetch/cardharvest/internal/scheduler"
	"github.com/hobbyfetch/cardharvest/internal/scrape"
	"github.com/hobbyfetch/cardharvest/internal/store"
	"github.com/hobbyfetch/cardharvest/internal/telegram"
)

// renderSettle is how long a marketplace page is given to build its card
// grid client-side before the HTML is captured.
const renderSettle = 3 * time.Second

var (
	sourceFlag = flag.String("source", "all", "Which marketplace to harvest: all, vinted or catawiki")
)

func main() {
	flag.Parse()

	// Load environment. The dashboard server keeps its .env one level down;
	// prefer it so both processes read the same credentials.
	loadDotenv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level)

	// Initialize the eBay client
	ebayClient := ebay.NewClient(ebay.Options{
		ClientID:      cfg.Ebay.ClientID,
		ClientSecret:  cfg.Ebay.ClientSecret,
		MarketplaceID: cfg.Ebay.MarketplaceID,
		RefreshToken:  cfg.Ebay.RefreshToken,
		Timeout:       cfg.Ebay.Timeout,
	})

	// Initialize storage
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := store.Connect(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
	connectCancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := db.Close(closeCtx); err != nil {
			logger.Warn("closing store: %v", err)
		}
	}()

	// Start the shared browser session
	renderer, err := scrape.NewChromeRenderer(renderSettle)
	if err != nil {
		log.Fatalf("Failed to start browser: %v", err)
	}
	defer renderer.Close()

	harvesters, interval, err := buildHarvesters(*sourceFlag, cfg, renderer, ebayClient, db)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Initialize the Telegram notifier
	var notifier scheduler.Notifier
	if cfg.Telegram.Enabled() {
		tg, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram notifier: %v", err)
		}
		notifier = tg
		logger.Info("telegram cycle summaries enabled")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutdown signal received, finishing up")
		cancel()
	}()

	logger.Info("starting harvester (source: %s, interval: %s, marketplace: %s)",
		*sourceFlag, interval, cfg.Ebay.MarketplaceID)

	sched := scheduler.New(ebayClient, db, harvesters, notifier, interval)
	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Scheduler stopped: %v", err)
	}
	logger.Info("harvester stopped")
}

// buildHarvesters assembles the pipelines for the selected run mode and
// picks the matching cycle interval.
func buildHarvesters(
	source string,
	cfg *config.Config,
	renderer scrape.Renderer,
	ebayClient *ebay.Client,
	db *store.Store,
) ([]scheduler.Harvester, time.Duration, error) {
	vinted := func() scheduler.Harvester {
		ex := scrape.NewVintedExtractor(cfg.Vinted.Domain, cfg.Vinted.Search)
		return pipeline.New(ex, scrape.NewWalker(renderer, ex), ebayClient, db, cfg.Vinted.MinLikes, cfg.Vinted.MaxPages)
	}
	catawiki := func() scheduler.Harvester {
		ex := scrape.NewCatawikiExtractor(cfg.Catawiki.SearchURL)
		return pipeline.New(ex, scrape.NewWalker(renderer, ex), ebayClient, db, cfg.Catawiki.MinLikes, cfg.Catawiki.MaxPages)
	}

	switch source {
	case "all":
		return []scheduler.Harvester{vinted(), catawiki()}, cfg.Scheduler.CombinedInterval, nil
	case "vinted":
		return []scheduler.Harvester{vinted()}, cfg.Scheduler.VintedInterval, nil
	case "catawiki":
		return []scheduler.Harvester{catawiki()}, cfg.Scheduler.CatawikiInterval, nil
	default:
		return nil, 0, fmt.Errorf("unknown source %q: want all, vinted or catawiki", source)
	}
}

func loadDotenv() {
	if _, err := os.Stat("server/.env"); err == nil {
		_ = godotenv.Load("server/.env")
		return
	}
	_ = godotenv.Load()
}
