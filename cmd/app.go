package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/adrata/record-sync/internal/bus"
	"github.com/adrata/record-sync/internal/cache"
	"github.com/adrata/record-sync/internal/model"
	"github.com/adrata/record-sync/internal/resilience"
	"github.com/adrata/record-sync/internal/route"
	"github.com/adrata/record-sync/internal/syncengine"
	"github.com/adrata/record-sync/internal/transition"
	"github.com/adrata/record-sync/pkg/entityapi"
)

// app holds the wired components shared by the CLI commands and the
// server.
type app struct {
	schema  *model.Schema
	bus     *bus.Bus
	caches  *cache.Manager
	engines *syncengine.Registry
}

func (a *app) Close() {
	a.caches.Close()
}

// initApp wires schema, cache tiers, event bus, updater and the engine
// registry from configuration.
func initApp(ctx context.Context, nav transition.Navigator) (*app, error) {
	schema := model.DefaultSchema()
	if cfg.Schema.Path != "" {
		s, err := model.LoadSchema(cfg.Schema.Path)
		if err != nil {
			return nil, err
		}
		schema = s
	}

	sessionTier, err := cache.NewSQLiteTier(cfg.Cache.SessionPath)
	if err != nil {
		return nil, err
	}
	workspaceTier, err := initWorkspaceTier(ctx)
	if err != nil {
		sessionTier.Close()
		return nil, err
	}
	fetchTier := cache.NewMemoryTier(
		time.Duration(cfg.Cache.FetchTTLSecs)*time.Second,
		cfg.Cache.FetchCapacity,
	)
	manager := cache.NewManager(sessionTier, workspaceTier, fetchTier)

	updater, err := initUpdater()
	if err != nil {
		manager.Close()
		return nil, err
	}

	b := bus.New()
	transitions := transition.NewHandler(b, nav,
		transition.WithNavigationDelay(time.Duration(cfg.Sync.NavigationDelayMs)*time.Millisecond),
	)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Sync.RetryAttempts

	engines := syncengine.NewRegistry(syncengine.Config{
		Router:        route.New(schema),
		Updater:       updater,
		Caches:        manager,
		Transitions:   transitions,
		Bus:           b,
		Retry:         retry,
		RecencyWindow: time.Duration(cfg.Sync.RecencyWindowMillis) * time.Millisecond,
	})

	return &app{schema: schema, bus: b, caches: manager, engines: engines}, nil
}

func initWorkspaceTier(ctx context.Context) (cache.Tier, error) {
	switch cfg.Cache.WorkspaceDriver {
	case "sqlite":
		return cache.NewSQLiteTier(cfg.Cache.WorkspacePath)
	case "postgres":
		return cache.NewPostgresTier(ctx, cfg.Cache.WorkspaceDSN)
	default:
		return nil, eris.Errorf("unsupported workspace cache driver: %s", cfg.Cache.WorkspaceDriver)
	}
}

func initUpdater() (syncengine.Updater, error) {
	switch cfg.EntityAPI.Backend {
	case "http":
		return entityapi.New(cfg.EntityAPI.BaseURL,
			entityapi.WithToken(cfg.EntityAPI.Token),
			entityapi.WithTimeout(time.Duration(cfg.EntityAPI.TimeoutSecs)*time.Second),
			entityapi.WithRateLimit(cfg.EntityAPI.RateRPS),
		), nil
	case "salesforce":
		return initSalesforceUpdater()
	default:
		return nil, eris.Errorf("unsupported entity API backend: %s", cfg.EntityAPI.Backend)
	}
}

func initSalesforceUpdater() (syncengine.Updater, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (RECORDSYNC_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return entityapi.NewSalesforceUpdater(sf,
		entityapi.WithSalesforceRateLimit(cfg.Salesforce.RateRPS),
		entityapi.WithSalesforceFieldNames(map[string]map[string]string{
			"Contact": {"fullName": "Name", "jobTitle": "Title", "email": "Email", "phone": "Phone"},
			"Account": {"name": "Name", "website": "Website", "industry": "Industry"},
		}),
	), nil
}
