package cookie

import (
	"fmt"
	"strings"
	"time"
)

// Fixed cookie names consumed by clients and by the authorizer.
const (
	IdentityCookie = "idToken"
	RenewalCookie  = "refreshToken"
)

// Codec renders and parses the two credential cookies. It is pure and
// stateless; Max-Age values are fixed at construction so they always match
// the lifetimes of the tokens they carry.
type Codec struct {
	identityMaxAge int
	renewalMaxAge  int
	production     bool // adds the Secure attribute
}

// New builds a codec whose Max-Age attributes mirror the given token
// lifetimes. production controls the Secure attribute: development
// deployments omit it so plain-HTTP local testing works.
func New(identityTTL, renewalTTL time.Duration, production bool) *Codec {
	return &Codec{
		identityMaxAge: int(identityTTL.Seconds()),
		renewalMaxAge:  int(renewalTTL.Seconds()),
		production:     production,
	}
}

// Render returns the two Set-Cookie header values carrying the credentials.
func (c *Codec) Render(identityAssertion, renewalCredential string) []string {
	return []string{
		c.render(IdentityCookie, identityAssertion, c.identityMaxAge),
		c.render(RenewalCookie, renewalCredential, c.renewalMaxAge),
	}
}

// RenderExpired returns the same two cookies with empty values and
// Max-Age=0, instructing the client to discard both credentials on logout.
func (c *Codec) RenderExpired() []string {
	return []string{
		c.render(IdentityCookie, "", 0),
		c.render(RenewalCookie, "", 0),
	}
}

func (c *Codec) render(name, value string, maxAge int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s; Path=/; Max-Age=%d; HttpOnly; SameSite=Lax", name, value, maxAge)
	if c.production {
		b.WriteString("; Secure")
	}
	return b.String()
}

// Extract returns the named cookie's value from an inbound Cookie header.
// Segments are split on ';' and trimmed; the first '=' delimits name from
// value. JWT values are '='-free by construction (base64url compact
// serialization), so anything after a second '=' belonging to the value is
// passed through as-is rather than truncated.
func Extract(header, name string) (string, bool) {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		k, v, ok := strings.Cut(part, "=")
		if ok && k == name {
			return v, true
		}
	}
	return "", false
}
