// Package whitelist loads the static name -> zone id authorization file.
package whitelist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ggrandes/jupdate53/internal/domain"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
	"golang.org/x/net/idna"
	"gopkg.in/yaml.v3"
)

// Load reads the whitelist at path. Files ending in .yaml or .yml are parsed
// as a YAML mapping, anything else as a Java-style properties file.
// Invalid entries are skipped and logged; only I/O and syntax errors are returned.
func Load(path string, log zerolog.Logger) (domain.Whitelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open whitelist: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read whitelist: %w", err)
		}
		return ParseYAML(raw, log)
	default:
		return ParseProperties(f, log)
	}
}

// ParseYAML parses a flat mapping of domain name to zone id.
func ParseYAML(raw []byte, log zerolog.Logger) (domain.Whitelist, error) {
	var entries map[string]string
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse whitelist yaml: %w", err)
	}

	wl := make(domain.Whitelist, len(entries))
	for k, v := range entries {
		add(wl, k, v, log)
	}
	return wl, nil
}

// ParseProperties parses "name=zoneid" lines. As in java.util.Properties the
// separator may also be ':' or whitespace, and lines starting with '#' or '!'
// are comments. Later duplicates win.
func ParseProperties(r io.Reader, log zerolog.Logger) (domain.Whitelist, error) {
	wl := make(domain.Whitelist)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}

		key, value := splitProperty(line)
		if key == "" {
			log.Warn().Int("line", lineNo).Msg("whitelist: entry without key skipped")
			continue
		}
		add(wl, key, value, log)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan whitelist: %w", err)
	}
	return wl, nil
}

func splitProperty(line string) (string, string) {
	i := strings.IndexAny(line, "=: \t")
	if i == -1 {
		return line, ""
	}
	key := line[:i]
	rest := strings.TrimLeft(line[i:], " \t")
	// "key = value" and "key value" both have a single separator.
	if rest != "" && (rest[0] == '=' || rest[0] == ':') {
		rest = rest[1:]
	}
	return key, strings.TrimSpace(rest)
}

func add(wl domain.Whitelist, rawName, rawZone string, log zerolog.Logger) {
	name, err := NormalizeName(rawName)
	if err != nil {
		log.Warn().Str("name", rawName).Err(err).Msg("whitelist: invalid name skipped")
		return
	}
	zone := strings.TrimSpace(rawZone)
	if zone == "" {
		log.Warn().Str("name", name).Msg("whitelist: entry without zone id skipped")
		return
	}
	if prev, ok := wl[name]; ok && prev != zone {
		log.Debug().Str("name", name).Str("previous", prev).Str("zone", zone).Msg("whitelist: duplicate name, last one wins")
	}
	wl[name] = zone
}

// NormalizeName lower-cases a whitelist key and converts IDN labels to
// their ASCII form so it compares equal to names sent by clients.
// A single leading '*' is preserved.
func NormalizeName(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))

	prefix := ""
	if strings.HasPrefix(name, "*") {
		prefix = "*"
		name = name[1:]
	}
	if name == "" {
		return "", fmt.Errorf("empty name")
	}

	if !isASCII(name) {
		ascii, err := idna.Lookup.ToASCII(name)
		if err != nil {
			return "", fmt.Errorf("idna: %w", err)
		}
		name = strings.ToLower(ascii)
	}

	body := name
	if prefix != "" {
		// "*.example.com" is the usual wildcard spelling.
		body = strings.TrimPrefix(body, ".")
	}
	if _, ok := dns.IsDomainName(body); !ok {
		return "", fmt.Errorf("%q is not a domain name", name)
	}

	// Entries must also be names a client is able to send.
	if _, err := domain.NormalizeFQDNs([]string{prefix + name}); err != nil {
		return "", fmt.Errorf("%q: %w", prefix+name, err)
	}
	return prefix + name, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
