package domain

// Whitelist maps a lower-cased domain name to the only zone id it may be updated under.
// It is built once at startup and never mutated afterwards.
type Whitelist map[string]string

// ZoneFor returns the zone registered for name.
func (w Whitelist) ZoneFor(name string) (string, bool) {
	z, ok := w[name]
	return z, ok
}

// Authorizes reports whether every name is registered under zoneID.
func (w Whitelist) Authorizes(names []string, zoneID string) bool {
	for _, name := range names {
		z, ok := w[name]
		if !ok || z != zoneID {
			return false
		}
	}
	return true
}
