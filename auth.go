package gobolt

import "github.com/mickamy/gobolt/internal/packstream"

// AuthToken carries the scheme and fields sent in LOGON. The driver always
// sends them in a separate LOGON after HELLO; they are never folded into
// HELLO, whatever protocol version was negotiated.
type AuthToken struct {
	fields map[string]packstream.Value
}

// Fields returns the dictionary entries to place in LOGON's extra field.
func (a AuthToken) Fields() map[string]packstream.Value { return a.fields }

// NoAuth returns a token for servers with authentication disabled.
func NoAuth() AuthToken {
	return AuthToken{fields: map[string]packstream.Value{"scheme": packstream.String("none")}}
}

// BasicAuth returns a username/password token, with an optional realm.
func BasicAuth(principal, credentials, realm string) AuthToken {
	fields := map[string]packstream.Value{
		"scheme":      packstream.String("basic"),
		"principal":   packstream.String(principal),
		"credentials": packstream.String(credentials),
	}
	if realm != "" {
		fields["realm"] = packstream.String(realm)
	}
	return AuthToken{fields: fields}
}

// BearerAuth returns a token carrying a pre-issued access token (SSO).
func BearerAuth(token, realm string) AuthToken {
	fields := map[string]packstream.Value{
		"scheme":      packstream.String("bearer"),
		"credentials": packstream.String(token),
	}
	if realm != "" {
		fields["realm"] = packstream.String(realm)
	}
	return AuthToken{fields: fields}
}

// KerberosAuth returns a token carrying a Kerberos ticket.
func KerberosAuth(principal, ticket, realm string) AuthToken {
	fields := map[string]packstream.Value{
		"scheme":      packstream.String("kerberos"),
		"principal":   packstream.String(principal),
		"credentials": packstream.String(ticket),
	}
	if realm != "" {
		fields["realm"] = packstream.String(realm)
	}
	return AuthToken{fields: fields}
}

// CustomAuth returns a token for a provider-defined scheme with arbitrary
// extra fields.
func CustomAuth(scheme string, extra map[string]packstream.Value) AuthToken {
	fields := make(map[string]packstream.Value, len(extra)+1)
	for k, v := range extra {
		fields[k] = v
	}
	fields["scheme"] = packstream.String(scheme)
	return AuthToken{fields: fields}
}
