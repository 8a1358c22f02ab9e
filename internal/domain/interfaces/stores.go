package interfaces

// PropertyStore is the minimal key/value contract the trust layer needs from
// a configuration backend. Keys are dot-separated namespaced strings.
type PropertyStore interface {
	GetString(key string) (string, bool, error)
	SetString(key, value string) error
	GetBool(key string) (value bool, ok bool, err error)
	SetBool(key string, value bool) error
	Remove(key string) error

	// KeysWithPrefix returns every stored key that starts with prefix+".".
	KeysWithPrefix(prefix string) ([]string, error)
}
