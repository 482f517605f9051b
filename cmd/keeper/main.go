package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/cursor-auth-keeper/internal/accounts"
	"github.com/pysugar/cursor-auth-keeper/internal/api"
	"github.com/pysugar/cursor-auth-keeper/internal/authflow"
	"github.com/pysugar/cursor-auth-keeper/internal/browser"
	"github.com/pysugar/cursor-auth-keeper/internal/config"
	"github.com/pysugar/cursor-auth-keeper/internal/db"
	"github.com/pysugar/cursor-auth-keeper/internal/fingerprint"
	"github.com/pysugar/cursor-auth-keeper/internal/logging"
	"github.com/pysugar/cursor-auth-keeper/internal/store"
	"github.com/pysugar/cursor-auth-keeper/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to keeper.yaml")
	showVersion := flag.Bool("version", false, "print version and exit")
	importAuthData := flag.String("import-authdata", "", "import an editor auth payload file and exit")
	exportAuthData := flag.String("export-authdata", "", "write the current account's auth payload to a file and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cursor-auth-keeper %s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	accountStore := store.New(database)

	// Initialize fingerprint archive
	archive, err := fingerprint.NewArchive(cfg.FingerprintDir)
	if err != nil {
		log.Fatalf("Failed to initialize fingerprint archive: %v", err)
	}

	// Initialize lifecycle manager
	launcher := &browser.ChromeLauncher{}
	launchOpts := browser.LaunchOptions{
		Headless:       cfg.Browser.Headless,
		ExecutablePath: cfg.Browser.ExecutablePath,
		UserAgent:      cfg.Browser.UserAgent,
	}
	manager := accounts.NewManager(accountStore, archive, launcher, launchOpts)

	if *importAuthData != "" {
		payload, err := accounts.LoadAuthPayload(*importAuthData)
		if err != nil {
			log.Fatalf("Failed to read auth payload: %v", err)
		}
		account, err := manager.LoadFromAuthData(payload)
		if err != nil {
			log.Fatalf("Failed to import auth payload: %v", err)
		}
		log.Printf("✅ imported %s as current account", account.Email)
		return
	}
	if *exportAuthData != "" {
		current, err := accountStore.GetCurrent()
		if err != nil {
			log.Fatalf("Failed to load current account: %v", err)
		}
		if current == nil {
			log.Fatal("No accounts stored, nothing to export")
		}
		if err := accounts.SaveAuthPayload(*exportAuthData, accounts.PayloadFor(current)); err != nil {
			log.Fatalf("Failed to write auth payload: %v", err)
		}
		log.Printf("✅ exported auth payload for %s to %s", current.Email, *exportAuthData)
		return
	}

	// Rederive statuses on startup so stale records surface immediately
	if _, err := manager.RefreshStatus(); err != nil {
		log.Printf("⚠️ status refresh on startup failed: %v", err)
	}

	// Create router
	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Account management
		r.Get("/accounts", api.AccountsListHandler(accountStore))
		r.Post("/accounts", api.AccountUpsertHandler(accountStore))
		r.Delete("/accounts/{id}", api.AccountRemoveHandler(accountStore))
		r.Get("/accounts/current", api.CurrentAccountHandler(accountStore))
		r.Post("/accounts/{id}/promote", api.PromoteAccountHandler(accountStore))
		r.Post("/accounts/{id}/logout", api.LogoutHandler(manager))

		// Bulk transfer
		r.Post("/accounts/import", api.ImportHandler(manager))
		r.Get("/accounts/export", api.ExportHandler(manager))
		r.Post("/accounts/refresh-status", api.RefreshStatusHandler(manager, accountStore))

		// Usage thresholds
		r.Get("/thresholds", api.ThresholdsGetHandler(accountStore))
		r.Put("/thresholds", api.ThresholdsPutHandler(accountStore))

		// Editor auth payload exchange
		r.Post("/authdata", api.AuthDataLoadHandler(manager))
		r.Get("/authdata", api.AuthDataExportHandler(accountStore))

		// Authorization sessions
		r.Post("/login", api.LoginHandler(manager))
		r.Post("/login/cancel", api.LoginCancelHandler(manager))

		// Fingerprint archive
		r.Get("/fingerprints/latest", api.FingerprintLatestHandler(archive))
	})

	authURL := authflow.BuildAuthURL(cfg.Auth.AuthURL, cfg.Auth.ClientID, cfg.Auth.RedirectURL)
	log.Printf("🚀 cursor-auth-keeper %s starting on http://%s", version.Version, cfg.Addr())
	log.Printf("🔑 authorization endpoint: %s", authURL)
	log.Printf("📦 database: %s, fingerprints: %s", cfg.DBPath, cfg.FingerprintDir)

	if err := http.ListenAndServe(cfg.Addr(), r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
