// Package cmd provides CLI commands for the recap tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recap-cli/config"
	"github.com/otherjamesbrown/recap-cli/credentials"
	"github.com/otherjamesbrown/recap-cli/pkg/bridge"
	"github.com/otherjamesbrown/recap-cli/pkg/dom"
	"github.com/otherjamesbrown/recap-cli/pkg/export"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
	"github.com/otherjamesbrown/recap-cli/pkg/observability"
	"github.com/otherjamesbrown/recap-cli/pkg/scraper"
	"github.com/otherjamesbrown/recap-cli/pkg/storage"
)

// SourceOptions says where the page being scraped comes from.
type SourceOptions struct {
	// HTMLPath is a static HTML snapshot.
	HTMLPath string

	// CapturePath is a replay capture manifest.
	CapturePath string

	// Frame also consults the embedded frame through the bridge.
	Frame bool

	// URL overrides the page address.
	URL string
}

// Session is an opened scraper.Session plus whatever must be released after.
type Session struct {
	scraper.Session
	closers []func() error
}

// Close releases the transports behind the session.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SecretStore is the part of credentials.Store the commands use.
type SecretStore interface {
	Set(name, value string) error
	Get(name string) (string, error)
	Resolve(name string) (string, error)
	Delete(name string) error
	List() ([]credentials.SecretInfo, error)
	Path() string
	KeyDescription() string
}

// ExportRepository is the part of storage.Repository the commands use.
type ExportRepository interface {
	SaveExport(ctx context.Context, doc export.Document) (int64, error)
	ListExports(ctx context.Context, limit int) ([]storage.ExportSummary, error)
	GetExport(ctx context.Context, id int64) (*export.Document, error)
}

// Deps holds the dependencies shared by every recap command.
type Deps struct {
	Config  *config.CLIConfig
	Logger  logging.Logger
	Metrics *observability.Metrics

	// Registry receives metrics from scraping runs and the metrics server.
	Registry *prometheus.Registry

	LoadConfig  func() (*config.CLIConfig, error)
	OpenSession func(ctx context.Context, cfg *config.CLIConfig, src SourceOptions, logger logging.Logger) (*Session, error)
	OpenStore   func() (SecretStore, error)
	NewLogger   func(cfg *config.CLIConfig) logging.Logger

	// OpenTransport connects to the frame bridge.
	OpenTransport func(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (bridge.Transport, func() error, error)

	// OpenRepository connects to the export history database. The returned
	// func releases the connection.
	OpenRepository func(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (ExportRepository, func(), error)
}

// DefaultDeps returns the default dependencies for production use.
func DefaultDeps() *Deps {
	return &Deps{
		Registry:    prometheus.NewRegistry(),
		LoadConfig:  config.LoadConfig,
		OpenSession: OpenSession,
		OpenStore: func() (SecretStore, error) {
			return credentials.NewStore()
		},
		NewLogger:      NewLogger,
		OpenTransport:  OpenTransport,
		OpenRepository: OpenRepository,
	}
}

// NewLogger builds the command logger from config. Logs go to stderr.
func NewLogger(cfg *config.CLIConfig) logging.Logger {
	lc := logging.DefaultConfig()
	if cfg.Debug {
		lc.Level = logging.LevelDebug
	}
	lc.JSONFormat = cfg.LogJSON
	return logging.NewLogger(lc)
}

// init loads configuration once and derives logger and metrics from it.
func (d *Deps) init() error {
	if d.Config == nil {
		cfg, err := d.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		d.Config = cfg
	}
	if d.Logger == nil {
		if d.NewLogger != nil {
			d.Logger = d.NewLogger(d.Config)
		} else {
			d.Logger = logging.NewNopLogger()
		}
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewMetrics(d.Registry)
	}
	return nil
}

// OpenSession opens the parent page from a snapshot or capture and, with
// src.Frame, a bridge client standing in for the embedded frame.
func OpenSession(ctx context.Context, cfg *config.CLIConfig, src SourceOptions, logger logging.Logger) (*Session, error) {
	parent, err := openPage(src)
	if err != nil {
		return nil, err
	}

	session := &Session{Session: scraper.Session{Parent: parent}}
	if !src.Frame {
		return session, nil
	}

	transport, err := openRedisTransport(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	session.closers = append(session.closers, transport.Close)
	session.Frame = bridge.NewClient(transport, bridge.ClientConfig{
		Prefix:  cfg.Bridge.ChannelPrefix,
		Timeout: cfg.Bridge.RequestTimeout,
	}, logger)

	return session, nil
}

func openPage(src SourceOptions) (dom.Page, error) {
	switch {
	case src.HTMLPath != "" && src.CapturePath != "":
		return nil, fmt.Errorf("--html and --capture are mutually exclusive")
	case src.HTMLPath != "":
		p, err := dom.LoadStaticPage(src.HTMLPath, src.URL)
		if err != nil {
			return nil, err
		}
		return p, nil
	case src.CapturePath != "":
		p, err := dom.LoadReplayPage(src.CapturePath)
		if err != nil {
			return nil, err
		}
		if src.URL != "" {
			return &urlPage{Page: p, url: src.URL}, nil
		}
		return p, nil
	}
	return nil, fmt.Errorf("a page source is required: use --html or --capture")
}

// urlPage reports a caller-supplied address for a page.
type urlPage struct {
	dom.Page
	url string
}

func (p *urlPage) URL() string { return p.url }

// OpenTransport connects to the bridge Redis.
func OpenTransport(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (bridge.Transport, func() error, error) {
	transport, err := openRedisTransport(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return transport, transport.Close, nil
}

// resolveSecret reads a named secret, falling back to the environment alone
// when no encryption key is available.
func resolveSecret(name string) (string, error) {
	store, err := credentials.NewStore()
	if err != nil {
		return os.Getenv(credentials.EnvVar(name)), nil
	}
	return store.Resolve(name)
}

// openRedisTransport connects to the bridge Redis using the stored password, if any.
func openRedisTransport(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (*bridge.RedisTransport, error) {
	password, err := resolveSecret(credentials.SecretRedis)
	if err != nil {
		return nil, fmt.Errorf("reading redis password: %w", err)
	}

	transport, err := bridge.NewRedisTransportFromConfig(ctx, bridge.RedisConfig{
		Address:  cfg.Bridge.RedisAddress,
		Password: password,
		DB:       cfg.Bridge.RedisDB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to frame bridge: %w", err)
	}
	return transport, nil
}

// OpenRepository connects to the configured database and ensures the schema.
// The password is the "database" secret.
func OpenRepository(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (ExportRepository, func(), error) {
	if !cfg.Database.IsConfigured() {
		return nil, nil, fmt.Errorf("no database configured: set database.url or RECAP_DATABASE_URL")
	}

	dbCfg := storage.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	password, err := resolveSecret(credentials.SecretDatabase)
	if err != nil {
		return nil, nil, fmt.Errorf("reading database password: %w", err)
	}
	dbCfg.Password = password

	pool, err := storage.Connect(ctx, dbCfg)
	if err != nil {
		return nil, nil, err
	}

	repo := storage.NewRepository(pool, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		storage.Close(pool)
		return nil, nil, err
	}
	return repo, func() { storage.Close(pool) }, nil
}

// newService builds the boundary service for a session.
func newService(deps *Deps, session scraper.Session, publisher observability.Publisher) *scraper.Service {
	cfg := scraper.DefaultConfig()
	cfg.Collector = deps.Config.Collector.ToCollectorConfig()
	cfg.TitleFallback = deps.Config.Metadata.TitleFallback

	opts := []scraper.ServiceOption{
		scraper.WithMetrics(deps.Metrics),
		scraper.WithTracer(observability.NewTracer()),
	}
	if publisher != nil {
		opts = append(opts, scraper.WithPublisher(publisher))
	}
	return scraper.NewService(session, cfg, deps.Logger, opts...)
}

// eventPublisher returns a Redis publisher when operation events are enabled.
func eventPublisher(ctx context.Context, deps *Deps) (observability.Publisher, func() error, error) {
	if !deps.Config.Bridge.PublishEvents {
		return nil, func() error { return nil }, nil
	}
	transport, err := openRedisTransport(ctx, deps.Config, deps.Logger)
	if err != nil {
		return nil, nil, err
	}
	return transport, transport.Close, nil
}

// addSourceFlags registers the page source flags shared by scraping commands.
func addSourceFlags(cmd *cobra.Command, src *SourceOptions) {
	cmd.Flags().StringVar(&src.HTMLPath, "html", "", "Static HTML snapshot of the recap page")
	cmd.Flags().StringVar(&src.CapturePath, "capture", "", "Replay capture manifest (YAML)")
	cmd.Flags().BoolVar(&src.Frame, "frame", false, "Also read the embedded transcript frame through the bridge")
	cmd.Flags().StringVar(&src.URL, "url", "", "Override the page URL")
}

// withSession runs fn with a service over the session described by src.
func withSession(cmd *cobra.Command, deps *Deps, src SourceOptions, fn func(ctx context.Context, svc *scraper.Service) error) error {
	if err := deps.init(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, deps.Config.Timeout)
	defer cancel()

	session, err := deps.OpenSession(ctx, deps.Config, src, deps.Logger)
	if err != nil {
		return err
	}
	defer session.Close()

	publisher, closePublisher, err := eventPublisher(ctx, deps)
	if err != nil {
		return err
	}
	defer closePublisher()

	return fn(ctx, newService(deps, session.Session, publisher))
}
