package types

// KeyVariant selects which protocol a long-term key pair belongs to.
type KeyVariant string

const (
	// KeyVariantDirect is the point-to-point protocol key (Ed25519).
	KeyVariantDirect KeyVariant = "direct"
	// KeyVariantGroup is the multi-party protocol key (X25519).
	KeyVariantGroup KeyVariant = "group"
)

// String returns the string form of the variant.
func (v KeyVariant) String() string { return string(v) }

// Valid reports whether v is a known variant.
func (v KeyVariant) Valid() bool {
	return v == KeyVariantDirect || v == KeyVariantGroup
}

// KeyPair is a long-term account key pair of one variant.
type KeyPair struct {
	Variant KeyVariant `json:"variant"`
	Public  []byte     `json:"public"`
	Private []byte     `json:"private"`
}

// FingerprintRecord is the persisted trust state of one remote fingerprint.
type FingerprintRecord struct {
	UID         string      `json:"uid"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Petname     Petname     `json:"petname"`
	Verified    bool        `json:"verified"`
}
