package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"switchboard/catalog"
	"switchboard/config"
	"switchboard/core"
	"switchboard/core/address"
	"switchboard/core/provider"
	"switchboard/core/tokens"
	"switchboard/logger"
	"switchboard/providers"
	"switchboard/providers/anthropic"
	"switchboard/providers/base"
	"switchboard/providers/bedrock"
	"switchboard/providers/ollama"
	"switchboard/providers/openai"
	"switchboard/store"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options are the command-line overrides applied on top of the config file.
type Options struct {
	ConfigPath string // empty uses ~/.switchboard/config.toml
	Backend    string
	Model      string
	SessionID  string
	LogLevel   string
	Stderr     io.Writer
}

// Bootstrap creates and wires all application dependencies.
// Each phase is separate so commands can stop early.
func Bootstrap(ctx context.Context, opts Options) (*Application, error) {
	app, err := setup(opts)
	if err != nil {
		return nil, err
	}
	for _, phase := range []func(context.Context) error{app.loadCatalog, app.openStore, app.connect} {
		if err := phase(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

// setup loads configuration and initializes logging.
func setup(opts Options) (*Application, error) {
	cfg, warnings, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	log, logCloser, err := logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Pretty: true, Output: stderr})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	app := &Application{Config: cfg, Log: log, closers: []io.Closer{logCloser}}
	app.Backend, err = providers.ParseBackend(cfg.Backend)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *Application) loadCatalog(ctx context.Context) error {
	table, err := buildCatalog(ctx, a.Config, a.Backend, a.Log)
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}
	a.Catalog = table
	return nil
}

func (a *Application) openStore(ctx context.Context) error {
	st, err := store.Open(ctx, store.Options{
		Kind: store.Kind(a.Config.PlanStore),
		Dir:  a.Config.PlansDir,
		Path: a.Config.PlanDB,
	})
	if err != nil {
		return fmt.Errorf("opening plan store: %w", err)
	}
	a.Store = st
	a.closers = append(a.closers, st)
	return nil
}

// connect constructs the provider adapter for the configured backend.
func (a *Application) connect(ctx context.Context) error {
	a.SessionID = a.Config.SessionID
	if a.SessionID == "" {
		a.SessionID = uuid.NewString()
	}
	p, err := providers.New(ctx, providerConfig(a.Config, a.Backend), base.Deps{
		Catalog:   a.Catalog,
		Store:     a.Store,
		SessionID: a.SessionID,
		Estimator: tokens.New(a.Config.TokenMultiplier),
		Log:       a.Log,
	})
	if err != nil {
		return err
	}
	a.Provider = p
	a.Tracker = core.NewTracker(nil)

	a.Log.Debug().
		Str("backend", string(a.Backend)).
		Str("model", p.GetModel().CallAddress).
		Str("session", a.SessionID).
		Msg("switchboard ready")
	return nil
}

// loadConfig loads configuration, applies flag overrides and ensures directories exist.
func loadConfig(opts Options) (config.Config, []string, error) {
	var (
		cfg      config.Config
		warnings []string
		err      error
	)
	if opts.ConfigPath != "" {
		cfg, warnings, err = config.LoadFrom(opts.ConfigPath, config.DefaultConfig())
	} else {
		cfg, warnings, err = config.Load()
	}
	if err != nil {
		return config.Config{}, nil, err
	}

	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.SessionID != "" {
		cfg.SessionID = opts.SessionID
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, warnings, nil
}

// buildCatalog starts from the built-in table, applies fetched Bedrock prices
// when enabled, then the user's override file, which wins.
func buildCatalog(ctx context.Context, cfg config.Config, backend providers.Backend, log zerolog.Logger) (*catalog.Table, error) {
	table := catalog.Builtin(string(backend))
	if table == nil {
		return nil, fmt.Errorf("no catalog for backend %q", backend)
	}

	if backend == providers.Bedrock && cfg.Bedrock.PricingEnabled {
		engine, err := bedrock.NewPricingEngineFromConfig(ctx, cfg.Bedrock.Profile, log)
		if err != nil {
			log.Warn().Err(err).Msg("bedrock pricing disabled")
		} else {
			overrides, err := fetchPricing(ctx, engine, table.Models(), pricingOptions(cfg, false), defaultPricingBackoff())
			if err != nil {
				log.Warn().Err(err).Msg("using built-in bedrock prices")
			} else {
				table = table.WithOverrides(overrides)
			}
		}
	}

	file, err := catalog.LoadOverrides(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	if entries := file[string(backend)]; len(entries) > 0 {
		table = table.WithOverrides(entries)
		log.Debug().Int("overrides", len(entries)).Str("file", cfg.CatalogFile).Msg("catalog overrides applied")
	}
	return table, nil
}

// pricingSource fetches Bedrock price overrides; *bedrock.PricingEngine implements it.
type pricingSource interface {
	Overrides(ctx context.Context, models []provider.ModelInfo, opts bedrock.PricingOptions) ([]catalog.Override, error)
}

// fetchPricing retries transient Pricing API failures. Throttling and outages
// are retried; anything else fails at once.
func fetchPricing(ctx context.Context, src pricingSource, models []provider.ModelInfo, opts bedrock.PricingOptions, policy backoff.BackOff) ([]catalog.Override, error) {
	var overrides []catalog.Override
	operation := func() error {
		var err error
		overrides, err = src.Overrides(ctx, models, opts)
		if err == nil {
			return nil
		}
		if errors.Is(err, provider.ErrThrottled) || errors.Is(err, provider.ErrUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("fetching bedrock pricing: %w", err)
	}
	return overrides, nil
}

func defaultPricingBackoff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 1 * time.Second
	eb.MaxInterval = 8 * time.Second
	eb.MaxElapsedTime = 30 * time.Second
	eb.Reset()
	return backoff.WithMaxRetries(eb, 3)
}

// pricingOptions prices models in the region requests go to. A resource
// locator's region wins over the configured one.
func pricingOptions(cfg config.Config, force bool) bedrock.PricingOptions {
	region := cfg.Bedrock.Region
	if d, err := address.Parse(cfg.Model); err == nil {
		region = address.EffectiveRegion(d, region)
	}
	return bedrock.PricingOptions{
		Region:       region,
		CacheDir:     cfg.Bedrock.PricingCacheDir,
		CacheTTL:     cfg.Bedrock.PricingCacheTTL,
		ForceRefresh: force,
	}
}

// providerConfig maps the config file onto adapter options. API keys are read
// from the environment here and nowhere else.
func providerConfig(cfg config.Config, backend providers.Backend) providers.Config {
	return providers.Config{
		Backend:   backend,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Bedrock: bedrock.Options{
			Region:          cfg.Bedrock.Region,
			Profile:         cfg.Bedrock.Profile,
			CrossRegion:     cfg.Bedrock.CrossRegion,
			GlobalInference: cfg.Bedrock.GlobalInference,
			PromptCache:     cfg.Bedrock.PromptCache,
			ResolveProfiles: cfg.Bedrock.ResolveProfiles,
		},
		Anthropic: anthropic.Options{
			APIKey:         config.APIKey(cfg.Anthropic.APIKeyEnv),
			BaseURL:        cfg.Anthropic.BaseURL,
			PromptCache:    cfg.Anthropic.PromptCache,
			ThinkingBudget: cfg.Anthropic.ThinkingBudget,
		},
		OpenAI: openai.Options{
			APIKey:       config.APIKey(cfg.OpenAI.APIKeyEnv),
			BaseURL:      cfg.OpenAI.BaseURL,
			Organization: cfg.OpenAI.Organization,
		},
		Ollama: ollama.Options{
			Host:  cfg.Ollama.Host,
			Think: cfg.Ollama.Think,
		},
	}
}
