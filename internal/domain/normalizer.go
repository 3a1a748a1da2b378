package domain

import (
	"net/netip"
	"strconv"
	"strings"
)

// Input limits of the update endpoint.
const (
	MinZoneIDLen = 3
	MaxZoneIDLen = 128
	MaxNames     = 42
	MinFQDNLen   = 4
	MaxFQDNLen   = 255
	MaxTTLDigits = 3
	MaxIPLen     = 15

	DefaultTTL = "3"
	MinTTL     = 1
	MaxTTL     = 600
)

// Fields reported by ValidationError.
const (
	FieldZoneID = "ZONEID"
	FieldFQDN   = "FQDN"
	FieldTTL    = "TTL"
	FieldIP     = "IP"
)

// ValidationError is returned for malformed input. No state is touched when it occurs.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "invalid " + strings.ToLower(e.Field)
}

// Code is the status code sent back to the client, e.g. "INVALID:FQDN".
func (e *ValidationError) Code() string {
	return "INVALID:" + e.Field
}

func invalid(field string) error {
	return &ValidationError{Field: field}
}

// ParseUpdateRequest validates raw request parameters in the order
// zoneid, fqdn, ttl, ip and stops at the first failure.
// remoteAddr is the "host:port" the request came from; it is used when ip is empty.
func ParseUpdateRequest(zoneID string, fqdns []string, ttl, ip, remoteAddr string) (UpdateRequest, error) {
	z, err := ParseZoneID(zoneID)
	if err != nil {
		return UpdateRequest{}, err
	}

	names, err := NormalizeFQDNs(fqdns)
	if err != nil {
		return UpdateRequest{}, err
	}

	t, err := ParseTTL(ttl)
	if err != nil {
		return UpdateRequest{}, err
	}

	var addr string
	if ip == "" {
		addr, err = RemoteIPv4(remoteAddr)
	} else {
		addr, err = ParseIPv4(ip)
	}
	if err != nil {
		return UpdateRequest{}, err
	}

	return UpdateRequest{
		ZoneID: z,
		Names:  names,
		TTL:    t,
		IP:     addr,
	}, nil
}

// ParseZoneID accepts 3..128 alphanumeric characters.
func ParseZoneID(s string) (string, error) {
	if len(s) < MinZoneIDLen || len(s) > MaxZoneIDLen || !onlyBytes(s, isAlnum) {
		return "", invalid(FieldZoneID)
	}
	return s, nil
}

// NormalizeFQDNs validates 1..42 names and lower-cases them.
// The minimum length is measured on the raw value, the charset and the
// maximum length on the value without its leading '*'.
func NormalizeFQDNs(values []string) ([]string, error) {
	if len(values) < 1 || len(values) > MaxNames {
		return nil, invalid(FieldFQDN)
	}

	out := make([]string, len(values))
	for i, name := range values {
		if len(name) < MinFQDNLen {
			return nil, invalid(FieldFQDN)
		}
		n := strings.TrimPrefix(name, "*")
		if n == "" || len(n) > MaxFQDNLen || !onlyBytes(n, isHostByte) {
			return nil, invalid(FieldFQDN)
		}
		out[i] = strings.ToLower(name)
	}
	return out, nil
}

// ParseTTL accepts up to three digits, defaults to 3 and clamps to [1,600].
func ParseTTL(s string) (int64, error) {
	if s == "" {
		s = DefaultTTL
	} else if len(s) > MaxTTLDigits || !onlyBytes(s, isDigit) {
		return 0, invalid(FieldTTL)
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, invalid(FieldTTL)
	}
	if v < MinTTL {
		v = MinTTL
	}
	if v > MaxTTL {
		v = MaxTTL
	}
	return v, nil
}

// ParseIPv4 accepts a dotted-quad IPv4 address without leading zeros.
func ParseIPv4(s string) (string, error) {
	if s == "" || len(s) > MaxIPLen || !onlyBytes(s, isIPv4Byte) {
		return "", invalid(FieldIP)
	}
	// netip rejects octets with leading zeros and values above 255.
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return "", invalid(FieldIP)
	}
	return addr.String(), nil
}

// RemoteIPv4 extracts the caller's IPv4 address from a "host:port" pair.
func RemoteIPv4(remoteAddr string) (string, error) {
	ap, err := netip.ParseAddrPort(remoteAddr)
	if err != nil {
		// Some transports hand over a bare address.
		a, aerr := netip.ParseAddr(remoteAddr)
		if aerr != nil {
			return "", invalid(FieldIP)
		}
		ap = netip.AddrPortFrom(a, 0)
	}
	addr := ap.Addr().Unmap()
	if !addr.Is4() {
		return "", invalid(FieldIP)
	}
	return addr.String(), nil
}

func onlyBytes(s string, ok func(byte) bool) bool {
	for i := 0; i < len(s); i++ {
		if !ok(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isHostByte(c byte) bool { return isAlnum(c) || c == '.' || c == '-' }

func isIPv4Byte(c byte) bool { return isDigit(c) || c == '.' }
