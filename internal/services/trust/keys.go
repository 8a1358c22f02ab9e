package trust

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"conclave/internal/crypto"
	"conclave/internal/domain"
	"conclave/internal/store"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrKeyExists is returned by Generate when the account already has a pair
	// of that variant. Existing keys are never replaced.
	ErrKeyExists = errors.New("key pair already exists")

	// ErrNoAccount is returned when an operation needs a stored account.
	ErrNoAccount = errors.New("no such account")

	// ErrPassphraseRequired is returned when sealed key material is loaded
	// without a passphrase.
	ErrPassphraseRequired = errors.New("key material is sealed; passphrase required")

	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// KeyManager stores one long-term key pair per (account, variant).
//
// With a non-empty passphrase, private keys are sealed (scrypt +
// XChaCha20-Poly1305, see store.Seal) before they reach the property store.
type KeyManager struct {
	props      domain.PropertyStore
	keys       keyspace
	passphrase string
	log        *zap.Logger

	mu sync.Mutex
}

// NewKeyManager returns a KeyManager over props.
func NewKeyManager(
	props domain.PropertyStore,
	namespace string,
	passphrase string,
	log *zap.Logger,
) *KeyManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &KeyManager{
		props:      props,
		keys:       newKeyspace(namespace),
		passphrase: passphrase,
		log:        log.Named("keys"),
	}
}

// Load returns the stored pair. It never generates or migrates anything.
func (m *KeyManager) Load(
	account domain.AccountID,
	variant domain.KeyVariant,
) (domain.KeyPair, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(account, variant)
}

// Generate creates and stores a new pair for account.
func (m *KeyManager) Generate(
	account domain.AccountID,
	variant domain.KeyVariant,
) (domain.KeyPair, error) {
	if !variant.Valid() {
		return domain.KeyPair{}, fmt.Errorf("generate: unknown key variant %q", variant)
	}
	if m.passphrase != "" && !isSecurePassphrase(m.passphrase) {
		return domain.KeyPair{}, ErrWeakPassphrase
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok, err := m.load(account, variant); err != nil {
		return domain.KeyPair{}, err
	} else if ok {
		return domain.KeyPair{}, fmt.Errorf("generate %s key for %s: %w", variant, account, ErrKeyExists)
	}

	pair, err := crypto.GenerateKeyPair(variant)
	if err != nil {
		return domain.KeyPair{}, err
	}
	if err := m.save(account, pair); err != nil {
		return domain.KeyPair{}, err
	}
	m.log.Info("key pair generated",
		zap.String("account", account.String()),
		zap.String("variant", variant.String()),
		zap.String("fingerprint", crypto.Fingerprint(pair.Public).String()),
	)
	return pair, nil
}

// MigrateLegacyThenLoad returns the Direct pair, first importing legacy
// per-account keys if no Direct pair is stored yet. Legacy keys are removed
// once imported.
func (m *KeyManager) MigrateLegacyThenLoad(account domain.AccountID) (domain.KeyPair, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair, ok, err := m.load(account, domain.KeyVariantDirect)
	if err != nil || ok {
		return pair, ok, err
	}

	pubKey := m.keys.legacy(account.String(), legacyPublicSuffix)
	privKey := m.keys.legacy(account.String(), legacyPrivateSuffix)

	pub, ok, err := m.getBytes(pubKey)
	if err != nil || !ok {
		return domain.KeyPair{}, false, err
	}
	priv, ok, err := m.getBytes(privKey)
	if err != nil || !ok {
		return domain.KeyPair{}, false, err
	}

	pair = domain.KeyPair{Variant: domain.KeyVariantDirect, Public: pub, Private: priv}
	if err := m.save(account, pair); err != nil {
		return domain.KeyPair{}, false, fmt.Errorf("migrate %s: %w", account, err)
	}
	if err := m.props.Remove(privKey); err != nil {
		return domain.KeyPair{}, false, err
	}
	if err := m.props.Remove(pubKey); err != nil {
		return domain.KeyPair{}, false, err
	}
	m.log.Info("legacy key pair migrated", zap.String("account", account.String()))
	return pair, true, nil
}

// LocalFingerprint returns the fingerprint of the stored public key.
func (m *KeyManager) LocalFingerprint(
	account domain.AccountID,
	variant domain.KeyVariant,
) (domain.Fingerprint, bool, error) {
	pair, ok, err := m.Load(account, variant)
	if err != nil || !ok {
		return "", false, err
	}
	return crypto.Fingerprint(pair.Public), true, nil
}

// LoadAsync runs Load on a background goroutine.
func (m *KeyManager) LoadAsync(
	ctx context.Context,
	account domain.AccountID,
	variant domain.KeyVariant,
) <-chan domain.KeyLoadResult {
	ch := make(chan domain.KeyLoadResult, 1)
	go func() {
		defer close(ch)
		pair, ok, err := m.Load(account, variant)
		select {
		case ch <- domain.KeyLoadResult{Pair: pair, Found: ok, Err: err}:
		case <-ctx.Done():
		}
	}()
	return ch
}

// Accounts lists the account IDs with stored key material.
func (m *KeyManager) Accounts() ([]domain.AccountID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	root := m.keys.accountRoot()
	keys, err := m.props.KeysWithPrefix(root)
	if err != nil {
		return nil, err
	}
	var out []domain.AccountID
	for _, uid := range recordUIDs(root, keys) {
		name, ok, err := m.props.GetString(m.keys.account(uid, nameSuffix))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, domain.AccountID(name))
		}
	}
	return out, nil
}

func (m *KeyManager) load(
	account domain.AccountID,
	variant domain.KeyVariant,
) (domain.KeyPair, bool, error) {
	uid, ok, err := m.accountUID(account)
	if err != nil || !ok {
		return domain.KeyPair{}, false, err
	}
	v := variant.String()

	pub, ok, err := m.getBytes(m.keys.account(uid, v, publicSuffix))
	if err != nil || !ok {
		return domain.KeyPair{}, false, err
	}
	priv, ok, err := m.getBytes(m.keys.account(uid, v, privateSuffix))
	if err != nil || !ok {
		return domain.KeyPair{}, false, err
	}
	sealed, _, err := m.props.GetBool(m.keys.account(uid, v, sealedSuffix))
	if err != nil {
		return domain.KeyPair{}, false, err
	}
	if sealed {
		if m.passphrase == "" {
			return domain.KeyPair{}, false, ErrPassphraseRequired
		}
		opened, err := store.Open(m.passphrase, priv)
		if err != nil {
			return domain.KeyPair{}, false, fmt.Errorf("open %s key for %s: %w", variant, account, err)
		}
		crypto.Wipe(priv)
		priv = opened
	}
	return domain.KeyPair{Variant: variant, Public: pub, Private: priv}, true, nil
}

func (m *KeyManager) save(account domain.AccountID, pair domain.KeyPair) error {
	uid, ok, err := m.accountUID(account)
	if err != nil {
		return err
	}
	if !ok {
		if uid, err = m.addAccount(account); err != nil {
			return err
		}
	}
	v := pair.Variant.String()

	priv := pair.Private
	sealed := m.passphrase != ""
	if sealed {
		if priv, err = store.Seal(m.passphrase, pair.Private); err != nil {
			return err
		}
	}
	if err := m.props.SetString(m.keys.account(uid, v, publicSuffix), crypto.B64(pair.Public)); err != nil {
		return err
	}
	if err := m.props.SetBool(m.keys.account(uid, v, sealedSuffix), sealed); err != nil {
		return err
	}
	return m.props.SetString(m.keys.account(uid, v, privateSuffix), crypto.B64(priv))
}

func (m *KeyManager) accountUID(account domain.AccountID) (string, bool, error) {
	root := m.keys.accountRoot()
	keys, err := m.props.KeysWithPrefix(root)
	if err != nil {
		return "", false, err
	}
	for _, uid := range recordUIDs(root, keys) {
		name, ok, err := m.props.GetString(m.keys.account(uid, nameSuffix))
		if err != nil {
			return "", false, err
		}
		if ok && name == account.String() {
			return uid, true, nil
		}
	}
	return "", false, nil
}

func (m *KeyManager) addAccount(account domain.AccountID) (string, error) {
	if account == "" {
		return "", fmt.Errorf("add account: %w", ErrNoAccount)
	}
	uid := uuid.NewString()
	if err := m.props.SetString(m.keys.account(uid), uid); err != nil {
		return "", err
	}
	if err := m.props.SetString(m.keys.account(uid, nameSuffix), account.String()); err != nil {
		return "", err
	}
	return uid, nil
}

func (m *KeyManager) getBytes(key string) ([]byte, bool, error) {
	s, ok, err := m.props.GetString(key)
	if err != nil || !ok {
		return nil, false, err
	}
	b, err := crypto.FromB64(s)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return b, true, nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

var (
	_ domain.KeyManager     = (*KeyManager)(nil)
	_ domain.AsyncKeyLoader = (*KeyManager)(nil)
)
