package store_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"conclave/internal/domain"
	"conclave/internal/store"
)

type opener func(t *testing.T) domain.PropertyStore

func backends() map[string]opener {
	return map[string]opener{
		"file": func(t *testing.T) domain.PropertyStore {
			return store.NewPropertyFileStore(t.TempDir())
		},
		"sqlite": func(t *testing.T) domain.PropertyStore {
			t.Helper()
			s, err := store.OpenSQLiteStore(filepath.Join(t.TempDir(), "props.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestPropertyStore_StringRoundTrip(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ps := open(t)

			if _, ok, err := ps.GetString("ns.missing"); err != nil || ok {
				t.Fatalf("missing key: ok=%v err=%v", ok, err)
			}
			if err := ps.SetString("ns.a", "one"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := ps.SetString("ns.a", "two"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, ok, err := ps.GetString("ns.a")
			if err != nil || !ok || got != "two" {
				t.Fatalf("get = %q ok=%v err=%v", got, ok, err)
			}
		})
	}
}

func TestPropertyStore_Bool(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ps := open(t)

			if err := ps.SetBool("ns.flag", true); err != nil {
				t.Fatalf("set bool: %v", err)
			}
			v, ok, err := ps.GetBool("ns.flag")
			if err != nil || !ok || !v {
				t.Fatalf("get bool = %v ok=%v err=%v", v, ok, err)
			}
			if err := ps.SetString("ns.bad", "maybe"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if _, _, err := ps.GetBool("ns.bad"); err == nil {
				t.Fatal("expected parse error for non-boolean value")
			}
		})
	}
}

func TestPropertyStore_RemoveAndPrefix(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ps := open(t)

			for _, k := range []string{"ns.fp.1", "ns.fp.1.petname", "ns.fp.2", "ns.fpx", "other.fp.3"} {
				if err := ps.SetString(k, "v"); err != nil {
					t.Fatalf("set %s: %v", k, err)
				}
			}
			keys, err := ps.KeysWithPrefix("ns.fp")
			if err != nil {
				t.Fatalf("prefix: %v", err)
			}
			want := []string{"ns.fp.1", "ns.fp.1.petname", "ns.fp.2"}
			if !reflect.DeepEqual(keys, want) {
				t.Fatalf("keys = %v, want %v", keys, want)
			}

			if err := ps.Remove("ns.fp.1"); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if err := ps.Remove("ns.never"); err != nil {
				t.Fatalf("remove missing: %v", err)
			}
			if _, ok, _ := ps.GetString("ns.fp.1"); ok {
				t.Fatal("key still present after remove")
			}
		})
	}
}

func TestPropertyFileStore_PersistsAcrossInstances(t *testing.T) {
	home := t.TempDir()

	if err := store.NewPropertyFileStore(home).SetString("ns.k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := store.NewPropertyFileStore(home).GetString("ns.k")
	if err != nil || !ok || got != "v" {
		t.Fatalf("reopen get = %q ok=%v err=%v", got, ok, err)
	}
}

func TestSQLiteStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "props.db")

	s, err := store.OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SetBool("ns.v", false); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = s.Close()

	s, err = store.OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	v, ok, err := s.GetBool("ns.v")
	if err != nil || !ok || v {
		t.Fatalf("reopen get = %v ok=%v err=%v", v, ok, err)
	}
}

var cheapKDF = store.KDFParams{N: 1 << 10, R: 8, P: 1}

func TestSeal_OpenRoundTrip(t *testing.T) {
	raw := []byte("private key material")

	sealed, err := store.Seal("pass", raw)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := store.Open("pass", sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(got) != string(raw) {
		t.Fatalf("open = %q, want %q", got, raw)
	}

	again, err := store.SealWith(cheapKDF, "pass", raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) == string(sealed) {
		t.Fatal("sealing twice produced identical output")
	}
}

func TestSeal_RejectsWrongPassphraseAndTampering(t *testing.T) {
	sealed, err := store.SealWith(cheapKDF, "correct", []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := store.Open("wrong", sealed); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("err = %v, want ErrWrongPassphrase", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(sealed, &doc); err != nil {
		t.Fatal(err)
	}
	doc["kdf"].(map[string]any)["p"] = 2
	tampered, _ := json.Marshal(doc)
	if _, err := store.Open("correct", tampered); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("tampered header err = %v", err)
	}
	if _, err := store.Open("correct", []byte("not json")); err == nil {
		t.Fatal("garbage opened")
	}
}

func TestPropertyFileStore_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "properties.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.NewPropertyFileStore(dir).GetString("ns.k"); err == nil {
		t.Fatal("corrupt document loaded")
	}
}

func TestPropertyFileStore_FailedWriteKeepsMemory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	s := store.NewPropertyFileStore(dir)
	if err := s.SetString("ns.a", "1"); err != nil {
		t.Fatal(err)
	}

	// A regular file where the directory was makes every rewrite fail.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := s.SetString("ns.a", "2"); err == nil {
		t.Fatal("update succeeded without a writable directory")
	}
	if err := s.SetString("ns.b", "x"); err == nil {
		t.Fatal("insert succeeded without a writable directory")
	}
	if err := s.Remove("ns.a"); err == nil {
		t.Fatal("remove succeeded without a writable directory")
	}

	if v, ok, _ := s.GetString("ns.a"); !ok || v != "1" {
		t.Fatalf("ns.a = %q, %v; want the last persisted value", v, ok)
	}
	if _, ok, _ := s.GetString("ns.b"); ok {
		t.Fatal("failed insert visible in memory")
	}
}
