package crypto

import (
	"fmt"

	"conclave/internal/domain"
)

// GenerateKeyPair creates a long-term key pair for the given protocol variant.
func GenerateKeyPair(variant domain.KeyVariant) (domain.KeyPair, error) {
	switch variant {
	case domain.KeyVariantDirect:
		priv, pub, err := GenerateEd25519()
		if err != nil {
			return domain.KeyPair{}, err
		}
		return domain.KeyPair{Variant: variant, Public: pub, Private: priv}, nil
	case domain.KeyVariantGroup:
		priv, pub, err := GenerateX25519()
		if err != nil {
			return domain.KeyPair{}, err
		}
		return domain.KeyPair{Variant: variant, Public: pub[:], Private: priv[:]}, nil
	default:
		return domain.KeyPair{}, fmt.Errorf("unknown key variant %q", variant)
	}
}
