package domain

import (
	"errors"
	"strings"
	"testing"
)

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	return verr.Field
}

func TestParseZoneID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "route53 style", raw: "Z1ABCDEF"},
		{name: "min length", raw: "abc"},
		{name: "max length", raw: strings.Repeat("Z", 128)},
		{name: "too short", raw: "ab", wantErr: true},
		{name: "too long", raw: strings.Repeat("Z", 129), wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "slash", raw: "/hostedzone/Z1", wantErr: true},
		{name: "dash", raw: "Z1-ABC", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseZoneID(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseZoneID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil {
				if f := fieldOf(t, err); f != FieldZoneID {
					t.Fatalf("field = %q, want %q", f, FieldZoneID)
				}
				return
			}
			if got != tt.raw {
				t.Fatalf("ParseZoneID(%q) = %q", tt.raw, got)
			}
		})
	}
}

func TestNormalizeFQDNs(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    []string
		wantErr bool
	}{
		{
			name: "lower-cased",
			raw:  []string{"Example.COM"},
			want: []string{"example.com"},
		},
		{
			name: "order preserved",
			raw:  []string{"b.example.com", "A.example.com"},
			want: []string{"b.example.com", "a.example.com"},
		},
		{
			name: "wildcard keeps its star",
			raw:  []string{"*Example.com"},
			want: []string{"*example.com"},
		},
		{
			// length is measured before the star is stripped
			name: "wildcard short body",
			raw:  []string{"*abc"},
			want: []string{"*abc"},
		},
		{name: "too short", raw: []string{"abc"}, wantErr: true},
		{name: "none", raw: nil, wantErr: true},
		{name: "too many", raw: repeatNames(43), wantErr: true},
		{name: "underscore", raw: []string{"bad_name.com"}, wantErr: true},
		{name: "star in the middle", raw: []string{"a.*.example.com"}, wantErr: true},
		{name: "double star", raw: []string{"**example.com"}, wantErr: true},
		{name: "too long", raw: []string{strings.Repeat("a", 256)}, wantErr: true},
		{name: "one bad name fails batch", raw: []string{"ok.example.com", "no way"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFQDNs(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeFQDNs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if f := fieldOf(t, err); f != FieldFQDN {
					t.Fatalf("field = %q, want %q", f, FieldFQDN)
				}
				return
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("NormalizeFQDNs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeFQDNs_MaxNames(t *testing.T) {
	got, err := NormalizeFQDNs(repeatNames(MaxNames))
	if err != nil {
		t.Fatalf("NormalizeFQDNs(42 names) error = %v", err)
	}
	if len(got) != MaxNames {
		t.Fatalf("len = %d, want %d", len(got), MaxNames)
	}
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "", want: 3},
		{raw: "0", want: 1},
		{raw: "60", want: 60},
		{raw: "600", want: 600},
		{raw: "999", want: 600},
		{raw: "9999", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "1s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTTL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTTL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil {
				if f := fieldOf(t, err); f != FieldTTL {
					t.Fatalf("field = %q, want %q", f, FieldTTL)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("ParseTTL(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseIPv4(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "198.51.100.7"},
		{raw: "0.0.0.0"},
		{raw: "255.255.255.255"},
		{raw: "256.1.1.1", wantErr: true},
		{raw: "01.2.3.4", wantErr: true},
		{raw: "1.2.3", wantErr: true},
		{raw: "1.2.3.4.5", wantErr: true},
		{raw: "::1", wantErr: true},
		{raw: "1.2.3.4 ", wantErr: true},
		{raw: "1111.222.333.444", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseIPv4(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIPv4(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err == nil && got != tt.raw {
				t.Fatalf("ParseIPv4(%q) = %q", tt.raw, got)
			}
		})
	}
}

func TestRemoteIPv4(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "ipv4 with port", raw: "203.0.113.5:4242", want: "203.0.113.5"},
		{name: "mapped ipv6", raw: "[::ffff:203.0.113.5]:4242", want: "203.0.113.5"},
		{name: "bare ipv4", raw: "203.0.113.5", want: "203.0.113.5"},
		{name: "ipv6", raw: "[2001:db8::1]:4242", wantErr: true},
		{name: "garbage", raw: "pipe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RemoteIPv4(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RemoteIPv4(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("RemoteIPv4(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseUpdateRequest(t *testing.T) {
	req, err := ParseUpdateRequest("Z1ABCDEF", []string{"Host.Example.com"}, "", "", "198.51.100.7:5555")
	if err != nil {
		t.Fatalf("ParseUpdateRequest() error = %v", err)
	}
	if req.ZoneID != "Z1ABCDEF" || req.TTL != 3 || req.IP != "198.51.100.7" {
		t.Fatalf("ParseUpdateRequest() = %+v", req)
	}
	if len(req.Names) != 1 || req.Names[0] != "host.example.com" {
		t.Fatalf("Names = %v", req.Names)
	}
}

func TestParseUpdateRequest_FirstFailureWins(t *testing.T) {
	tests := []struct {
		name     string
		zoneID   string
		fqdns    []string
		ttl      string
		ip       string
		wantCode string
	}{
		{name: "zone before fqdn", zoneID: "x", fqdns: []string{"abc"}, wantCode: "INVALID:ZONEID"},
		{name: "fqdn before ttl", zoneID: "Z1ABCDEF", fqdns: nil, ttl: "abcd", wantCode: "INVALID:FQDN"},
		{name: "fqdn", zoneID: "Z1ABCDEF", fqdns: []string{"abc"}, ttl: "abcd", wantCode: "INVALID:FQDN"},
		{name: "ttl before ip", zoneID: "Z1ABCDEF", fqdns: []string{"host.example.com"}, ttl: "9999", ip: "x", wantCode: "INVALID:TTL"},
		{name: "ip", zoneID: "Z1ABCDEF", fqdns: []string{"host.example.com"}, ip: "300.1.1.1", wantCode: "INVALID:IP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUpdateRequest(tt.zoneID, tt.fqdns, tt.ttl, tt.ip, "192.0.2.1:1")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Code() != tt.wantCode {
				t.Fatalf("Code() = %q, want %q", verr.Code(), tt.wantCode)
			}
		})
	}
}

func repeatNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "host.example.com"
	}
	return out
}

func BenchmarkParseUpdateRequest(b *testing.B) {
	fqdns := []string{"Host.Example.com", "*wild.example.com"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseUpdateRequest("Z1ABCDEF", fqdns, "60", "198.51.100.7", ""); err != nil {
			b.Fatalf("ParseUpdateRequest error: %v", err)
		}
	}
}
