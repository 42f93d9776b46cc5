package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/craft-api/internal/models"
)

func newTestLedger(clk *clock) *TokenLedger {
	ledger := NewTokenLedger(7 * 24 * time.Hour)
	ledger.now = clk.Now
	return ledger
}

func issued(value string, created time.Time) *models.RefreshToken {
	return &models.RefreshToken{Token: value, Created: created, Expires: created.Add(7 * 24 * time.Hour), CreatedByIP: "10.0.0.1"}
}

func TestTokenLedgerRotate(t *testing.T) {
	clk := newClock()
	ledger := newTestLedger(clk)
	account := &models.Account{ID: "a1"}
	a := issued("A", clk.Now())
	ledger.Add(account, a)

	b := issued("B", clk.Now())
	ledger.Rotate(account, a, b, "10.0.0.2")

	require.Len(t, account.RefreshTokens, 2)
	assert.False(t, a.IsActive(clk.Now()))
	assert.Equal(t, "B", *a.ReplacedByToken)
	assert.Equal(t, ReasonReplaced, *a.ReasonRevoked)
	assert.Equal(t, "10.0.0.2", *a.RevokedByIP)
	assert.True(t, b.IsActive(clk.Now()))
	assert.Equal(t, "a1", b.AccountID)
}

func TestTokenLedgerRevokeWithoutReplacement(t *testing.T) {
	clk := newClock()
	ledger := newTestLedger(clk)
	token := issued("A", clk.Now())

	ledger.Revoke(token, "10.0.0.1", ReasonRevoked, "")

	assert.True(t, token.IsRevoked())
	assert.Nil(t, token.ReplacedByToken)
	assert.Equal(t, ReasonRevoked, *token.ReasonRevoked)
}

func TestTokenLedgerRevokeDescendants(t *testing.T) {
	clk := newClock()
	ledger := newTestLedger(clk)
	account := &models.Account{ID: "a1"}
	a, b, c, d := issued("A", clk.Now()), issued("B", clk.Now()), issued("C", clk.Now()), issued("D", clk.Now())
	ledger.Add(account, a)
	ledger.Rotate(account, a, b, "ip")
	ledger.Rotate(account, b, c, "ip")
	ledger.Rotate(account, c, d, "ip")

	revoked := ledger.RevokeDescendants(account, a, "10.9.9.9", ReuseReason("A"))

	assert.Equal(t, 1, revoked)
	for _, token := range account.RefreshTokens {
		assert.False(t, token.IsActive(clk.Now()), token.Token)
	}
	assert.Equal(t, "Attempted reuse of revoked ancestor token: A", *d.ReasonRevoked)
	assert.Equal(t, ReasonReplaced, *b.ReasonRevoked)
}

func TestTokenLedgerRevokeDescendantsStopsOnCycle(t *testing.T) {
	clk := newClock()
	ledger := newTestLedger(clk)
	account := &models.Account{ID: "a1"}
	a, b := issued("A", clk.Now()), issued("B", clk.Now())
	ledger.Add(account, a)
	ledger.Add(account, b)
	ledger.Revoke(a, "ip", ReasonReplaced, "B")
	b.ReplacedByToken = optional("A")

	assert.Equal(t, 1, ledger.RevokeDescendants(account, a, "ip", ReuseReason("A")))
	assert.True(t, b.IsRevoked())
}

func TestTokenLedgerRevokeDescendantsMissingLink(t *testing.T) {
	clk := newClock()
	ledger := newTestLedger(clk)
	account := &models.Account{ID: "a1"}
	a := issued("A", clk.Now())
	ledger.Add(account, a)
	ledger.Revoke(a, "ip", ReasonReplaced, "PRUNED")

	assert.Equal(t, 0, ledger.RevokeDescendants(account, a, "ip", ReuseReason("A")))
}

func TestTokenLedgerPruneInactive(t *testing.T) {
	clk := newClock()
	ledger := newTestLedger(clk)
	account := &models.Account{ID: "a1"}
	start := clk.Now()

	oldRevoked := issued("OLD", start.Add(-8*24*time.Hour))
	ledger.Revoke(oldRevoked, "ip", ReasonRevoked, "")
	boundary := issued("EDGE", start.Add(-7*24*time.Hour))
	ledger.Revoke(boundary, "ip", ReasonRevoked, "")
	recentRevoked := issued("RECENT", start.Add(-time.Hour))
	ledger.Revoke(recentRevoked, "ip", ReasonRevoked, "")
	active := issued("ACTIVE", start)

	account.RefreshTokens = []*models.RefreshToken{oldRevoked, boundary, recentRevoked, active}

	removed := ledger.PruneInactive(account)

	assert.Equal(t, 2, removed)
	var kept []string
	for _, token := range account.RefreshTokens {
		kept = append(kept, token.Token)
	}
	assert.Equal(t, []string{"RECENT", "ACTIVE"}, kept)
}
