package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"polychat/internal/config"
	"polychat/internal/db"
	"polychat/internal/dispatch"
	"polychat/internal/events"
	"polychat/internal/faq"
	"polychat/internal/models"
	"polychat/internal/proxy"
	"polychat/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (.yaml or .toml)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  polychat [-config path]            start the terminal UI\n  polychat [-config path] serve [-addr :8788]  run the credential proxy\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		os.Exit(runTUI(cfg))
	}

	switch args[0] {
	case "serve":
		os.Exit(runServe(cfg, args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// openStats opens the stats store and registers a session, or returns nil
func openStats(cfg *config.Config, surface string) (*db.Store, string) {
	sessionID := uuid.NewString()
	if !cfg.StatsEnabled() {
		return nil, sessionID
	}

	store, err := db.Open()
	if err != nil {
		log.Printf("[main] stats disabled: %v", err)
		return nil, sessionID
	}
	if err := store.CreateSession(sessionID, surface); err != nil {
		log.Printf("[main] failed to register session: %v", err)
	}
	return store, sessionID
}

func newDispatcher(cfg *config.Config, store *db.Store, sessionID string) *dispatch.Dispatcher {
	timeout := time.Duration(cfg.Defaults.ModelTimeout) * time.Second
	d := dispatch.New(models.NewOpenRouter(cfg), timeout)
	if store != nil {
		d.WithRecorder(store, sessionID)
	}
	return d
}

func runTUI(cfg *config.Config) int {
	// the alternate screen owns stdout, so logs go to a file or nowhere
	if os.Getenv("POLYCHAT_DEBUG") != "" {
		f, err := tea.LogToFile("polychat-debug.log", "polychat")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	if cfg.Upstream.APIKey == "" && cfg.Upstream.BaseURL == config.DefaultBaseURL {
		fmt.Fprintln(os.Stderr, "Warning: no API key configured. Set OPENROUTER_API_KEY or point upstream.base_url at a polychat proxy.")
	}
	log.Printf("[main] upstream %s, key %s", cfg.Upstream.BaseURL, cfg.Redacted())

	store, sessionID := openStats(cfg, "tui")
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := ui.Options{
		Context:    ctx,
		Catalog:    models.NewCatalog(cfg),
		Dispatcher: newDispatcher(cfg, store, sessionID),
		Events:     events.NewClient(cfg.Events.Endpoint),
		FAQ:        faqItems(cfg),
		Session:    dispatch.Options{DropFailedTurns: cfg.Focus.DropFailedTurns},
		ExportDir:  cfg.Export.Dir,
		SessionID:  sessionID,
	}
	if store != nil {
		opts.Stats = store
	}

	p := tea.NewProgram(ui.New(opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runServe(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.Proxy.Addr, "listen address")
	fs.Parse(args)

	if cfg.Upstream.APIKey == "" {
		log.Printf("[proxy] warning: no upstream API key configured")
	}
	log.Printf("[proxy] upstream %s, key %s", cfg.Upstream.BaseURL, cfg.Redacted())

	store, sessionID := openStats(cfg, "proxy")
	if store != nil {
		defer store.Close()
	}

	srv := proxy.New(models.NewCatalog(cfg), newDispatcher(cfg, store, sessionID))
	if store != nil {
		srv.WithStats(store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[proxy] shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(*addr); err != nil {
		log.Printf("[proxy] %v", err)
		return 1
	}
	log.Printf("[proxy] stopped")
	return 0
}

func faqItems(cfg *config.Config) []faq.Item {
	items := make([]faq.Item, 0, len(cfg.FAQ))
	for _, f := range cfg.FAQ {
		items = append(items, faq.Item{Question: f.Question, Answer: f.Answer})
	}
	return items
}
