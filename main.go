package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"driftflow/config"
	"driftflow/internal/contracts"
	"driftflow/internal/dashboard"
	"driftflow/internal/decoder"
	"driftflow/internal/store"
	"driftflow/internal/subscription"
	"driftflow/internal/symbols"
	"driftflow/internal/transport"
	"driftflow/logger"
	"driftflow/models"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	symbolFlag := flag.String("symbol", "", "Initial trading symbol (overrides config default)")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Driftflow.Name,
		"version": cfg.Driftflow.Version,
	}).Info("starting driftflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" || cfg.Metrics.CloudWatch {
		interval := cfg.Metrics.ReportInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		logger.StartReport(ctx, log, interval)
	}

	st := store.New()

	feed := transport.New(cfg.Feed)
	dec := decoder.New(st, cfg.Feed.OrderbookDepth, cfg.Feed.TradeHistory)
	feed.OnMessage(dec.Handle)

	resolver := symbols.NewChain(
		symbols.NewConfigResolver(cfg.Markets.Table()),
		symbols.NewAccountResolver(nil),
		symbols.NewStaticResolver(),
	)

	contractClient := contracts.NewClient(cfg.Contracts, st)
	manager := subscription.NewManager(cfg.Feed, feed, st, resolver)

	var wg sync.WaitGroup

	if server := dashboard.NewServer(cfg.Dashboard, log, st, feed); server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(ctx); err != nil {
				log.WithError(err).Warn("dashboard server failed")
			}
		}()
		log.WithFields(logger.Fields{"address": server.Address()}).Info("dashboard enabled")
	}

	// Keep the contract listing warm and feed it to the subscription
	// manager so the default market can activate as soon as it is known.
	wg.Add(1)
	go func() {
		defer wg.Done()
		refreshContracts(ctx, cfg, contractClient, manager, log)

		interval := cfg.Contracts.CacheTTL
		if interval <= 0 {
			interval = 30 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshContracts(ctx, cfg, contractClient, manager, log)
			}
		}
	}()

	symbol := cfg.Markets.DefaultSymbol
	if *symbolFlag != "" {
		symbol = strings.ToUpper(strings.TrimSpace(*symbolFlag))
	}
	manager.SetSymbol(symbol)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutting down")

	manager.Close()
	cancel()
	wg.Wait()

	log.Info("shutdown complete")
}

// refreshContracts fetches the perp contract listing, filters it down to
// the allowed symbols and hands it to the subscription manager.
func refreshContracts(ctx context.Context, cfg *config.Config, client *contracts.Client, manager *subscription.Manager, log *logger.Log) {
	perps, err := client.Perpetuals(ctx)
	if err != nil {
		log.WithError(err).Warn("contract listing refresh failed")
		return
	}

	if len(cfg.Markets.AllowedSymbols) > 0 {
		allowed := make(map[string]struct{}, len(cfg.Markets.AllowedSymbols))
		for _, s := range cfg.Markets.AllowedSymbols {
			allowed[s] = struct{}{}
		}
		filtered := make([]models.Contract, 0, len(perps))
		for _, contract := range perps {
			if _, ok := allowed[contract.BaseCurrency]; ok {
				filtered = append(filtered, contract)
			}
		}
		perps = filtered
	}

	manager.SetContracts(perps)
}
