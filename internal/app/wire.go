package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"conclave/internal/domain"
	"conclave/internal/events"
	"conclave/internal/relay"
	"conclave/internal/services/auth"
	"conclave/internal/services/registry"
	"conclave/internal/services/session"
	"conclave/internal/services/transform"
	"conclave/internal/services/trust"
	"conclave/internal/store"
)

// Engines are the cryptographic collaborators supplied by the embedding
// application. Every field is optional: without a factory hosts run
// degraded, and without a direct engine one-to-one messages pass unchanged.
type Engines struct {
	Factory domain.EngineFactory
	Codec   domain.Codec
	Direct  domain.DirectEngine
}

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config   Config
	Log      *zap.Logger
	Props    domain.PropertyStore
	Trust    *trust.Store
	Keys     *trust.KeyManager
	Sink     *events.Sink
	Registry *registry.Registry
	Auth     *auth.Manager
	Pipeline *transform.Pipeline
	Relay    *relay.Client // nil without a relay URL
	HTTP     *http.Client

	closers []func() error
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config, log *zap.Logger, eng Engines) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("create home: %w", err)
	}
	w := &Wire{Config: cfg, Log: log}

	switch cfg.Store {
	case StoreSQLite:
		db, err := store.OpenSQLiteStore(filepath.Join(cfg.Home, "conclave.db"))
		if err != nil {
			return nil, err
		}
		w.Props = db
		w.closers = append(w.closers, db.Close)
	default:
		w.Props = store.NewPropertyFileStore(cfg.Home)
	}

	w.Trust = trust.New(w.Props, cfg.Namespace, log)
	w.Keys = trust.NewKeyManager(w.Props, cfg.Namespace, cfg.Passphrase, log)

	// Ensure an HTTP client is available for outbound calls
	w.HTTP = cfg.HTTP
	if w.HTTP == nil {
		w.HTTP = http.DefaultClient
	}
	var direct domain.DirectTransport
	if cfg.RelayURL != "" {
		w.Relay = relay.NewClient(cfg.RelayURL, domain.Address(cfg.Account), cfg.Account)
		w.Relay.HTTP = w.HTTP
		direct = w.Relay
	}

	codec := eng.Codec
	if codec == nil {
		codec = transform.PlaintextCodec{}
	}

	w.Sink = events.NewSink(log)
	w.Registry = registry.New(session.Config{
		Direct:        direct,
		Factory:       eng.Factory,
		Codec:         codec,
		Trust:         w.Trust,
		Keys:          w.Keys,
		Sink:          w.Sink,
		Logger:        log,
		DedupCapacity: cfg.DedupCapacity,
	})
	w.Auth = auth.NewManager(w.Trust, w.Sink, log)
	w.Pipeline = transform.New(w.Registry, eng.Direct, codec, log)

	w.Registry.SubscribeHosts(func(e registry.HostEvent) {
		switch e.Kind {
		case registry.HostAdded:
			w.Auth.Watch(e.Host)
		case registry.HostRemoved:
			w.Auth.Unwatch(e.Host.RoomID())
		}
	})

	// Shut down in reverse order of construction.
	w.closers = append([]func() error{
		w.Auth.Close,
		w.Registry.Close,
		func() error { w.Sink.Close(); return nil },
	}, w.closers...)
	return w, nil
}

// Account returns the configured local account id.
func (w *Wire) Account() domain.AccountID { return domain.AccountID(w.Config.Account) }

// Close tears the graph down, returning every error encountered.
func (w *Wire) Close() error {
	var errs []error
	for _, c := range w.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	w.closers = nil
	return errors.Join(errs...)
}
