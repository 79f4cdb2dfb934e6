package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealscout/config"
	"dealscout/database"
	"dealscout/handlers"
	"dealscout/llm"
	"dealscout/repository"
	"dealscout/scheduler"
	"dealscout/scraper"
	"dealscout/services"
)

const (
	modeInteractive = "interactive"
	modeServe       = "serve"
	modeWatch       = "watch"
)

func main() {
	mode := flag.String("mode", modeInteractive, "run mode: interactive, serve or watch")
	quiet := flag.Bool("quiet", false, "discard log output")
	flag.Parse()

	log.SetOutput(os.Stderr)
	if *quiet {
		log.SetOutput(io.Discard)
	}

	if *mode == modeInteractive {
		printBanner(os.Stdout)
	}

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			fmt.Printf("❌ Error: %s not found in environment variables\n", cfg.LLM.CredentialEnv())
			fmt.Println("Please set your API key in the .env file")
			os.Exit(1)
		}
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent, closeDB, err := buildAgent(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize shopping agent: %v", err)
	}
	defer closeDB()

	switch *mode {
	case modeInteractive:
		runInteractive(ctx, os.Stdin, os.Stdout, agent.Process)
	case modeServe:
		if err := serve(ctx, cfg, agent); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case modeWatch:
		if err := watch(ctx, cfg, agent); err != nil {
			log.Fatalf("Watcher error: %v", err)
		}
	default:
		log.Fatalf("Unknown mode %q", *mode)
	}
}

// buildAgent wires the page engine, model client, adapters and optional
// observation store into one agent
func buildAgent(ctx context.Context, cfg *config.Config) (*services.ShoppingAgent, func(), error) {
	catalog, err := config.LoadSites(cfg.Search.SitesFile)
	if err != nil {
		return nil, nil, err
	}
	catalog.CapCards(cfg.Search.MaxCards)

	generator, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	var sessions scraper.SessionFactory
	switch cfg.Browser.Engine {
	case config.EngineHTTP:
		sessions = scraper.NewHTTPFactory(cfg.Browser.UserAgent, cfg.Browser.AdapterTimeout)
	default:
		sessions = scraper.NewBrowserFactory(scraper.BrowserOptions{
			Bin:       cfg.Browser.Bin,
			Headless:  cfg.Browser.Headless,
			UserAgent: cfg.Browser.UserAgent,
		})
	}

	agent := services.NewShoppingAgent(generator, sessions, scraper.NewSourceAdapters(catalog), services.AgentOptions{
		TopN:           cfg.Search.TopN,
		DefaultBudget:  cfg.Search.DefaultBudget,
		AdapterTimeout: cfg.Browser.AdapterTimeout,
	})

	closeDB := func() {}
	if cfg.Database.Enabled() {
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.CreateTables(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		agent.SetRecorder(repository.NewPriceHistoryRepository(db))
		closeDB = func() {
			if err := db.Close(); err != nil {
				log.Printf("Failed to close database: %v", err)
			}
		}
	}

	log.Printf("Shopping agent ready with %d sources (%s engine, %s model)", len(catalog.Sites), cfg.Browser.Engine, cfg.LLM.Model)
	return agent, closeDB, nil
}

// serve runs the HTTP API until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config, agent *services.ShoppingAgent) error {
	h := handlers.NewHandlers(agent, scheduler.NewTaskManager(agent.Search, cfg.Server.MaxWorkers))
	defer h.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           handlers.NewRouter(h, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 Server starting on %s", srv.Addr)
		log.Printf("   GET  /health - Health check")
		log.Printf("   POST /api/v1/search - Run a shopping query")
		log.Printf("   POST /api/v1/search/async - Queue a shopping query")
		log.Printf("   GET  /api/v1/tasks/{taskId} - Async query status")
		log.Printf("   GET  /api/v1/tasks/stats - Task manager statistics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// watch re-runs the configured queries until ctx is cancelled
func watch(ctx context.Context, cfg *config.Config, agent *services.ShoppingAgent) error {
	watcher := scheduler.NewWatcher(agent.Search, cfg.Watch)
	if err := watcher.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	watcher.Stop()
	return nil
}
