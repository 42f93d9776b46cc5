package service

import (
	"time"

	"github.com/noah-isme/craft-api/internal/models"
)

// Revocation reasons recorded on refresh tokens.
const (
	ReasonReplaced      = "Replaced by new token"
	ReasonRevoked       = "Revoked without replacement"
	reuseReasonTemplate = "Attempted reuse of revoked ancestor token: "
)

// ReuseReason is recorded on descendants revoked after a revoked token was replayed.
func ReuseReason(token string) string {
	return reuseReasonTemplate + token
}

// TokenLedger applies rotation, revocation and pruning to an account's refresh tokens.
// It only mutates the in-memory account; callers persist it.
type TokenLedger struct {
	ttl time.Duration
	now func() time.Time
}

// NewTokenLedger constructs a ledger pruning inactive tokens older than ttl.
func NewTokenLedger(ttl time.Duration) *TokenLedger {
	return &TokenLedger{ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// Add appends a freshly issued token to the account.
func (l *TokenLedger) Add(account *models.Account, token *models.RefreshToken) {
	token.AccountID = account.ID
	account.RefreshTokens = append(account.RefreshTokens, token)
}

// Rotate revokes old in favour of replacement and appends replacement. The old
// token stays in the chain so later replays can be traced.
func (l *TokenLedger) Rotate(account *models.Account, old, replacement *models.RefreshToken, ip string) {
	l.Revoke(old, ip, ReasonReplaced, replacement.Token)
	l.Add(account, replacement)
}

// Revoke stamps the token as revoked.
func (l *TokenLedger) Revoke(token *models.RefreshToken, ip, reason, replacedBy string) {
	now := l.now()
	token.Revoked = &now
	token.RevokedByIP = optional(ip)
	token.ReasonRevoked = optional(reason)
	token.ReplacedByToken = optional(replacedBy)
}

// RevokeDescendants follows the replaced-by chain from token and revokes every
// active descendant. It returns the number of tokens revoked.
func (l *TokenLedger) RevokeDescendants(account *models.Account, token *models.RefreshToken, ip, reason string) int {
	visited := map[string]struct{}{token.Token: {}}
	now := l.now()
	revoked := 0

	current := token
	for current.ReplacedByToken != nil && *current.ReplacedByToken != "" {
		next := account.FindRefreshToken(*current.ReplacedByToken)
		if next == nil {
			break
		}
		if _, seen := visited[next.Token]; seen {
			break
		}
		visited[next.Token] = struct{}{}

		if next.IsActive(now) {
			// keep the link so the chain remains walkable
			replacedBy := ""
			if next.ReplacedByToken != nil {
				replacedBy = *next.ReplacedByToken
			}
			l.Revoke(next, ip, reason, replacedBy)
			revoked++
		}
		current = next
	}
	return revoked
}

// PruneInactive drops tokens that are inactive and older than the ledger TTL.
func (l *TokenLedger) PruneInactive(account *models.Account) int {
	now := l.now()
	kept := account.RefreshTokens[:0]
	removed := 0
	for _, token := range account.RefreshTokens {
		if !token.IsActive(now) && !token.Created.Add(l.ttl).After(now) {
			removed++
			continue
		}
		kept = append(kept, token)
	}
	account.RefreshTokens = kept
	return removed
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
