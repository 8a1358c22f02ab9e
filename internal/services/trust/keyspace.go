package trust

import "strings"

// DefaultNamespace is the property prefix used when none is configured.
const DefaultNamespace = "conclave"

const (
	fingerprintInfix = "fingerprint"
	accountInfix     = "account"

	fpSuffix       = "fingerprint"
	petnameSuffix  = "petname"
	verifiedSuffix = "verified"
	nameSuffix     = "name"
	publicSuffix   = "public"
	privateSuffix  = "private"
	sealedSuffix   = "sealed"

	legacyPublicSuffix  = "publicKey"
	legacyPrivateSuffix = "privateKey"
)

// keyspace builds property keys under one namespace.
type keyspace struct{ ns string }

func newKeyspace(ns string) keyspace {
	ns = strings.Trim(strings.TrimSpace(ns), ".")
	if ns == "" {
		ns = DefaultNamespace
	}
	return keyspace{ns: ns}
}

func (k keyspace) join(parts ...string) string {
	return k.ns + "." + strings.Join(parts, ".")
}

func (k keyspace) fingerprintRoot() string { return k.join(fingerprintInfix) }

func (k keyspace) fingerprint(uid string, field ...string) string {
	return k.join(append([]string{fingerprintInfix, uid}, field...)...)
}

func (k keyspace) accountRoot() string { return k.join(accountInfix) }

func (k keyspace) account(uid string, field ...string) string {
	return k.join(append([]string{accountInfix, uid}, field...)...)
}

func (k keyspace) legacy(account, suffix string) string { return k.join(account, suffix) }

// recordUIDs filters keys under root down to the record roots themselves,
// returning their UIDs.
func recordUIDs(root string, keys []string) []string {
	p := root + "."
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		rest := strings.TrimPrefix(key, p)
		if rest == key || rest == "" || strings.Contains(rest, ".") {
			continue
		}
		out = append(out, rest)
	}
	return out
}
