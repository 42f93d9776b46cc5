package models

import "time"

// RefreshToken is one node of an account's rotation chain.
type RefreshToken struct {
	Token           string     `db:"token" json:"token"`
	AccountID       string     `db:"account_id" json:"-"`
	Expires         time.Time  `db:"expires_at" json:"expires"`
	Created         time.Time  `db:"created_at" json:"created"`
	CreatedByIP     string     `db:"created_by_ip" json:"created_by_ip"`
	Revoked         *time.Time `db:"revoked_at" json:"revoked,omitempty"`
	RevokedByIP     *string    `db:"revoked_by_ip" json:"revoked_by_ip,omitempty"`
	ReplacedByToken *string    `db:"replaced_by_token" json:"replaced_by_token,omitempty"`
	ReasonRevoked   *string    `db:"reason_revoked" json:"reason_revoked,omitempty"`
}

// IsExpired reports whether now is at or past the expiry.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.Expires)
}

// IsRevoked reports whether the token carries a revocation timestamp.
func (t *RefreshToken) IsRevoked() bool {
	return t.Revoked != nil
}

// IsActive is true for tokens that are neither revoked nor expired.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}
