package trust

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"conclave/internal/domain"
	"conclave/internal/events"
)

// Store keeps one FingerprintRecord per remote fingerprint.
type Store struct {
	props domain.PropertyStore
	keys  keyspace
	log   *zap.Logger

	// mu serializes every read-modify-write of the record table.
	mu      sync.Mutex
	changes *events.Broker[domain.Fingerprint]
}

// New returns a Store over props using namespace (DefaultNamespace if empty).
func New(props domain.PropertyStore, namespace string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		props:   props,
		keys:    newKeyspace(namespace),
		log:     log.Named("trust"),
		changes: events.NewBroker[domain.Fingerprint](nil),
	}
}

// SetVerified creates or updates the record for fp. A non-empty petname
// replaces the stored label. Subscribers are notified when the verification
// state flips, including creation as verified.
func (s *Store) SetVerified(petname domain.Petname, fp domain.Fingerprint, verified bool) error {
	changed, err := s.setVerified(petname, fp, verified)
	if err != nil {
		return err
	}
	if changed {
		s.log.Info("verification changed",
			zap.String("fingerprint", fp.String()),
			zap.Bool("verified", verified),
		)
		s.changes.Publish(fp)
	}
	return nil
}

func (s *Store) setVerified(petname domain.Petname, fp domain.Fingerprint, verified bool) (bool, error) {
	if fp == "" {
		return false, fmt.Errorf("set verified: empty fingerprint")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.find(fp)
	if err != nil {
		return false, err
	}
	if !ok {
		if _, err := s.add(petname, fp, verified); err != nil {
			return false, err
		}
		return verified, nil
	}

	if petname != "" && petname != rec.Petname {
		if err := s.props.SetString(s.keys.fingerprint(rec.UID, petnameSuffix), petname.String()); err != nil {
			return false, err
		}
	}
	if rec.Verified == verified {
		return false, nil
	}
	if err := s.props.SetBool(s.keys.fingerprint(rec.UID, verifiedSuffix), verified); err != nil {
		return false, err
	}
	return true, nil
}

// Verify marks fp verified under petname.
func (s *Store) Verify(petname domain.Petname, fp domain.Fingerprint) error {
	return s.SetVerified(petname, fp, true)
}

// Unverify marks fp unverified under petname.
func (s *Store) Unverify(petname domain.Petname, fp domain.Fingerprint) error {
	return s.SetVerified(petname, fp, false)
}

// IsVerified reports whether fp is verified. An empty petname matches any
// record; otherwise the stored petname must match too. Unknown fingerprints
// are unverified.
func (s *Store) IsVerified(petname domain.Petname, fp domain.Fingerprint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.find(fp)
	if err != nil || !ok {
		return false, err
	}
	if petname != "" && petname != rec.Petname {
		return false, nil
	}
	return rec.Verified, nil
}

// SaveFingerprint records fp under petname. An existing record keeps its
// verification state; only the label is updated.
func (s *Store) SaveFingerprint(petname domain.Petname, fp domain.Fingerprint) error {
	if fp == "" {
		return fmt.Errorf("save fingerprint: empty fingerprint")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.find(fp)
	if err != nil {
		return err
	}
	if !ok {
		_, err := s.add(petname, fp, false)
		return err
	}
	if petname == "" || petname == rec.Petname {
		return nil
	}
	return s.props.SetString(s.keys.fingerprint(rec.UID, petnameSuffix), petname.String())
}

// Petname returns the label stored for fp.
func (s *Store) Petname(fp domain.Fingerprint) (domain.Petname, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.find(fp)
	if err != nil || !ok {
		return "", false, err
	}
	return rec.Petname, true, nil
}

// AllFingerprints lists every known remote fingerprint.
func (s *Store) AllFingerprints() ([]domain.Fingerprint, error) {
	recs, err := s.Records()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Fingerprint, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Fingerprint)
	}
	return out, nil
}

// Records returns every fingerprint record.
func (s *Store) Records() ([]domain.FingerprintRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records()
}

// FingerprintsResult is delivered by AllFingerprintsAsync.
type FingerprintsResult struct {
	Fingerprints []domain.Fingerprint
	Err          error
}

// AllFingerprintsAsync lists fingerprints on a background goroutine. The
// channel receives exactly one result unless ctx is cancelled first.
func (s *Store) AllFingerprintsAsync(ctx context.Context) <-chan FingerprintsResult {
	ch := make(chan FingerprintsResult, 1)
	go func() {
		defer close(ch)
		fps, err := s.AllFingerprints()
		select {
		case ch <- FingerprintsResult{Fingerprints: fps, Err: err}:
		case <-ctx.Done():
		}
	}()
	return ch
}

// Subscribe registers fn for verification flips.
func (s *Store) Subscribe(fn func(domain.Fingerprint)) (cancel func()) {
	return s.changes.Subscribe(fn)
}

func (s *Store) records() ([]domain.FingerprintRecord, error) {
	root := s.keys.fingerprintRoot()
	keys, err := s.props.KeysWithPrefix(root)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}
	uids := recordUIDs(root, keys)
	out := make([]domain.FingerprintRecord, 0, len(uids))
	for _, uid := range uids {
		rec, ok, err := s.read(uid)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// find must be called with mu held.
func (s *Store) find(fp domain.Fingerprint) (domain.FingerprintRecord, bool, error) {
	if fp == "" {
		return domain.FingerprintRecord{}, false, nil
	}
	recs, err := s.records()
	if err != nil {
		return domain.FingerprintRecord{}, false, err
	}
	for _, r := range recs {
		if r.Fingerprint == fp {
			return r, true, nil
		}
	}
	return domain.FingerprintRecord{}, false, nil
}

func (s *Store) read(uid string) (domain.FingerprintRecord, bool, error) {
	fp, ok, err := s.props.GetString(s.keys.fingerprint(uid, fpSuffix))
	if err != nil || !ok {
		return domain.FingerprintRecord{}, false, err
	}
	petname, _, err := s.props.GetString(s.keys.fingerprint(uid, petnameSuffix))
	if err != nil {
		return domain.FingerprintRecord{}, false, err
	}
	verified, _, err := s.props.GetBool(s.keys.fingerprint(uid, verifiedSuffix))
	if err != nil {
		return domain.FingerprintRecord{}, false, err
	}
	return domain.FingerprintRecord{
		UID:         uid,
		Fingerprint: domain.Fingerprint(fp),
		Petname:     domain.Petname(petname),
		Verified:    verified,
	}, true, nil
}

// add must be called with mu held. The fingerprint key is written last so a
// partially written record is never returned by find.
func (s *Store) add(petname domain.Petname, fp domain.Fingerprint, verified bool) (string, error) {
	uid := uuid.NewString()
	if err := s.props.SetString(s.keys.fingerprint(uid), uid); err != nil {
		return "", err
	}
	if err := s.props.SetString(s.keys.fingerprint(uid, petnameSuffix), petname.String()); err != nil {
		return "", err
	}
	if err := s.props.SetBool(s.keys.fingerprint(uid, verifiedSuffix), verified); err != nil {
		return "", err
	}
	if err := s.props.SetString(s.keys.fingerprint(uid, fpSuffix), fp.String()); err != nil {
		return "", err
	}
	s.log.Debug("fingerprint recorded",
		zap.String("uid", uid),
		zap.String("fingerprint", fp.String()),
		zap.String("petname", petname.String()),
	)
	return uid, nil
}

// Compile-time assertion that Store implements domain.TrustStore.
var _ domain.TrustStore = (*Store)(nil)
