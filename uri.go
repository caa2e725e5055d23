package gobolt

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mickamy/gobolt/internal/transport"
)

// Routing selects whether a Target was parsed from a single-host scheme or
// a routing one. gobolt itself only ever opens a direct connection to
// Target.Host; routing-table discovery is out of scope, so a Routing
// target behaves identically to a direct one except that future callers
// can tell the two apart when layering their own routing policy on top.
type Routing int

const (
	RoutingDirect Routing = iota
	RoutingTable
)

const defaultPort = 7687

// Target is a parsed connection URI.
type Target struct {
	Routing   Routing
	Host      string
	Port      int
	Encrypted bool
	Trust     transport.TrustStrategy
	Database  string
	Query     url.Values
}

// ParseURI parses a bolt/neo4j connection string into a Target.
func ParseURI(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, &InvalidURIError{URI: raw, Reason: err.Error()}
	}
	if u.Host == "" {
		return Target{}, &InvalidURIError{URI: raw, Reason: "missing host"}
	}

	t := Target{Query: u.Query()}
	switch u.Scheme {
	case "bolt":
		t.Routing = RoutingDirect
	case "bolt+s":
		t.Routing, t.Encrypted = RoutingDirect, true
		t.Trust = transport.TrustStrategy{Mode: transport.TrustSystem}
	case "bolt+ssc":
		t.Routing, t.Encrypted = RoutingDirect, true
		t.Trust = transport.TrustStrategy{Mode: transport.TrustAny}
	case "neo4j":
		t.Routing = RoutingTable
	case "neo4j+s":
		t.Routing, t.Encrypted = RoutingTable, true
		t.Trust = transport.TrustStrategy{Mode: transport.TrustSystem}
	case "neo4j+ssc":
		t.Routing, t.Encrypted = RoutingTable, true
		t.Trust = transport.TrustStrategy{Mode: transport.TrustAny}
	default:
		return Target{}, &UnsupportedSchemeError{Scheme: u.Scheme}
	}

	t.Host = u.Hostname()
	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Target{}, &InvalidURIError{URI: raw, Reason: "invalid port: " + portStr}
		}
		t.Port = port
	} else {
		t.Port = defaultPort
	}

	if db := strings.Trim(u.Path, "/"); db != "" {
		if err := ValidateDatabaseName(db); err != nil {
			return Target{}, err
		}
		t.Database = db
	}

	return t, nil
}

// ValidateDatabaseName enforces the database-name shape gobolt accepts:
// 3 to 63 characters, starting with a letter, drawn from
// [a-zA-Z0-9._-], never ending in '.' or '-', and never containing "..".
func ValidateDatabaseName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return &InvalidURIError{URI: name, Reason: "database name must be 3-63 characters"}
	}
	if !isLetter(name[0]) {
		return &InvalidURIError{URI: name, Reason: "database name must start with a letter"}
	}
	last := name[len(name)-1]
	if last == '.' || last == '-' {
		return &InvalidURIError{URI: name, Reason: "database name must not end in '.' or '-'"}
	}
	if strings.Contains(name, "..") {
		return &InvalidURIError{URI: name, Reason: "database name must not contain '..'"}
	}
	for i := 0; i < len(name); i++ {
		if !isDBNameChar(name[i]) {
			return &InvalidURIError{URI: name, Reason: "database name contains an invalid character"}
		}
	}
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDBNameChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-'
}
