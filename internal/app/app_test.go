package app_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/viper"

	"conclave/internal/app"
	"conclave/internal/domain"
	"conclave/internal/engine/enginetest"
	"conclave/internal/loopback"
	"conclave/internal/services/auth"
)

func TestLoadConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	v := viper.New()
	v.Set("home", home)

	cfg, err := app.LoadConfig(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Home != home || cfg.Store != app.StoreFile || cfg.Namespace != "conclave" ||
		cfg.Account != "default" || cfg.DedupCapacity != 4096 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	home := t.TempDir()
	yaml := "namespace: lab\nstore: sqlite\naccount: alice\n"
	if err := os.WriteFile(filepath.Join(home, "conclave.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONCLAVE_ACCOUNT", "carol")
	t.Setenv("CONCLAVE_LOG_LEVEL", "debug")

	v := viper.New()
	v.Set("home", home)
	cfg, err := app.LoadConfig(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Namespace != "lab" || cfg.Store != app.StoreSQLite {
		t.Fatalf("file settings ignored: %+v", cfg)
	}
	if cfg.Account != "carol" || cfg.LogLevel != "debug" {
		t.Fatalf("environment did not win over the file: %+v", cfg)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	v := viper.New()
	v.Set("home", t.TempDir())
	v.Set("store", "floppy")
	if _, err := app.LoadConfig(v); err == nil {
		t.Fatal("unknown store accepted")
	}

	v = viper.New()
	v.Set("home", t.TempDir())
	v.Set("dedup_capacity", -1)
	if _, err := app.LoadConfig(v); err == nil {
		t.Fatal("negative dedup capacity accepted")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := app.NewLogger("info"); err != nil {
		t.Fatalf("info: %v", err)
	}
	if _, err := app.NewLogger("chatty"); err == nil {
		t.Fatal("unknown level accepted")
	}
}

func newConfig(t *testing.T, backend string) app.Config {
	t.Helper()
	return app.Config{
		Home:      t.TempDir(),
		Store:     backend,
		Namespace: "conclave",
		Account:   "me",
	}
}

func TestWire_TrustAndKeysPersist(t *testing.T) {
	for _, backend := range []string{app.StoreFile, app.StoreSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := newConfig(t, backend)
			w, err := app.NewWire(cfg, nil, app.Engines{})
			if err != nil {
				t.Fatalf("wire: %v", err)
			}
			pair, err := w.Keys.Generate(w.Account(), domain.KeyVariantGroup)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if err := w.Trust.Verify("bob", "00ff"); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			w, err = app.NewWire(cfg, nil, app.Engines{})
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer w.Close()
			got, ok, err := w.Keys.Load(w.Account(), domain.KeyVariantGroup)
			if err != nil || !ok || string(got.Public) != string(pair.Public) {
				t.Fatalf("reload = %v, %v", ok, err)
			}
			if ok, _ := w.Trust.IsVerified("bob", "00ff"); !ok {
				t.Fatal("trust lost across restarts")
			}
			if w.Relay != nil {
				t.Fatal("relay client without a relay URL")
			}
		})
	}
}

func TestWire_HostsAreWatched(t *testing.T) {
	factory := &enginetest.Factory{}
	w, err := app.NewWire(newConfig(t, app.StoreFile), nil, app.Engines{
		Factory: factory.New,
		Codec:   enginetest.Codec{},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	var (
		mu       sync.Mutex
		requests []*auth.Workflow
	)
	w.Auth.SubscribeRequests(func(wf *auth.Workflow) {
		mu.Lock()
		defer mu.Unlock()
		requests = append(requests, wf)
	})

	hub := loopback.NewHub("test")
	me := hub.Account("me", "me@test", "Me")
	if _, err := hub.Account("bob", "bob@test", "Bob").Join("lobby", "bob"); err != nil {
		t.Fatal(err)
	}
	w.Registry.AddProvider(me)
	if _, err := me.Join("lobby", "me"); err != nil {
		t.Fatal(err)
	}
	host, ok := w.Registry.Host("lobby")
	if !ok {
		t.Fatal("host not created on join")
	}

	host.AskForSecret(domain.NewIdentity("bob@test"), "colour?")
	// One flush for the host's SMP event, one for the manager's request.
	w.Sink.Flush()
	w.Sink.Flush()

	mu.Lock()
	n := len(requests)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("requests = %d, want 1", n)
	}

	me.Leave("lobby", domain.LocalLeft)
	w.Sink.Flush()
	if _, ok := w.Auth.Pending("lobby", domain.NewIdentity("bob@test")); ok {
		t.Fatal("workflow survived its room")
	}
}
