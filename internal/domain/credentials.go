package domain

import "time"

// SessionCredentialPair is the pair of signed tokens minted after a
// successful challenge. The identity assertion always has a strictly
// shorter validity window than the renewal credential.
type SessionCredentialPair struct {
	IdentityAssertion string        `json:"idToken"`
	RenewalCredential string        `json:"refreshToken"`
	IdentityTTL       time.Duration `json:"-"`
	RenewalTTL        time.Duration `json:"-"`
}

// UserContext is the read-only projection of identity-assertion claims.
// Produced fresh on every verification; never persisted.
type UserContext struct {
	UserID        string `json:"id"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Company       string `json:"company"`
	PhoneVerified bool   `json:"phone_verified"`
	EmailVerified bool   `json:"email_verified"`
}

// Strings flattens the context into the fixed string-valued map consumed by
// the gateway. The key set is stable; absent fields become empty strings.
func (u *UserContext) Strings() map[string]string {
	return map[string]string{
		"userId":      u.UserID,
		"phoneNumber": u.Phone,
		"email":       u.Email,
		"name":        u.Name,
		"role":        u.Role,
		"company":     u.Company,
	}
}
