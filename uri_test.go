package gobolt

import (
	"testing"

	"github.com/mickamy/gobolt/internal/transport"
)

func TestParseURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		uri     string
		want    Target
		wantErr bool
	}{
		{
			name: "bolt direct plaintext",
			uri:  "bolt://localhost:7687",
			want: Target{Routing: RoutingDirect, Host: "localhost", Port: 7687},
		},
		{
			name: "bolt default port",
			uri:  "bolt://localhost",
			want: Target{Routing: RoutingDirect, Host: "localhost", Port: 7687},
		},
		{
			name: "bolt+s trusts system CAs",
			uri:  "bolt+s://db.example.com:7687",
			want: Target{Routing: RoutingDirect, Host: "db.example.com", Port: 7687, Encrypted: true, Trust: transport.TrustStrategy{Mode: transport.TrustSystem}},
		},
		{
			name: "bolt+ssc trusts any certificate",
			uri:  "bolt+ssc://db.example.com:7687",
			want: Target{Routing: RoutingDirect, Host: "db.example.com", Port: 7687, Encrypted: true, Trust: transport.TrustStrategy{Mode: transport.TrustAny}},
		},
		{
			name: "neo4j scheme requests routing",
			uri:  "neo4j://cluster.example.com:7687",
			want: Target{Routing: RoutingTable, Host: "cluster.example.com", Port: 7687},
		},
		{
			name: "database name in path",
			uri:  "bolt://localhost:7687/mydb",
			want: Target{Routing: RoutingDirect, Host: "localhost", Port: 7687, Database: "mydb"},
		},
		{
			name:    "unsupported scheme",
			uri:     "http://localhost:7687",
			wantErr: true,
		},
		{
			name:    "missing host",
			uri:     "bolt://",
			wantErr: true,
		},
		{
			name:    "invalid database name too short",
			uri:     "bolt://localhost:7687/ab",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseURI(%q) = nil error, want error", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURI(%q) unexpected error: %v", tt.uri, err)
			}
			if got.Routing != tt.want.Routing || got.Host != tt.want.Host || got.Port != tt.want.Port ||
				got.Encrypted != tt.want.Encrypted || got.Trust.Mode != tt.want.Trust.Mode || got.Database != tt.want.Database {
				t.Errorf("ParseURI(%q) = %+v, want %+v", tt.uri, got, tt.want)
			}
		})
	}
}

func TestValidateDatabaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		db      string
		wantErr bool
	}{
		{"valid simple", "neo4j", false},
		{"valid with dash and underscore", "my-data_base.1", false},
		{"too short", "ab", true},
		{"starts with digit", "1db", true},
		{"ends with dot", "mydb.", true},
		{"ends with dash", "mydb-", true},
		{"contains double dot", "my..db", true},
		{"contains invalid char", "my db", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateDatabaseName(tt.db)
			if tt.wantErr && err == nil {
				t.Fatalf("ValidateDatabaseName(%q) = nil, want error", tt.db)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("ValidateDatabaseName(%q) unexpected error: %v", tt.db, err)
			}
		})
	}
}
