package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/internal/repository"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

// memoryStore is an in-memory AccountStore. Reads return deep copies so that
// services only observe changes they persist through Update.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	taken    map[string]bool
	updates  int
	failNext error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[string]*models.Account{}, taken: map[string]bool{}}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.RefreshTokens = make([]*models.RefreshToken, 0, len(a.RefreshTokens))
	for _, t := range a.RefreshTokens {
		tc := *t
		c.RefreshTokens = append(c.RefreshTokens, &tc)
	}
	return &c
}

func (m *memoryStore) seed(account *models.Account) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	m.accounts[account.ID] = cloneAccount(account)
	return account
}

func (m *memoryStore) get(id string) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil
	}
	return cloneAccount(a)
}

func (m *memoryStore) find(match func(*models.Account) bool) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.ID == id })
}

func (m *memoryStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Email == email })
}

func (m *memoryStore) FindByRefreshToken(ctx context.Context, token string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.OwnsToken(token) })
}

func (m *memoryStore) FindByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool {
		return a.VerificationToken != nil && *a.VerificationToken == token
	})
}

func (m *memoryStore) FindByValidResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error) {
	return m.find(func(a *models.Account) bool {
		return a.ResetToken != nil && *a.ResetToken == token && a.ResetTokenExpires != nil && a.ResetTokenExpires.After(now)
	})
}

func (m *memoryStore) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	_, err := m.find(func(a *models.Account) bool { return a.Email == email && a.ID != excludeID })
	return err == nil, nil
}

func (m *memoryStore) CountAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts), nil
}

func (m *memoryStore) List(ctx context.Context, page, pageSize int) ([]models.Account, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, *cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m *memoryStore) Insert(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	if exists, _ := m.ExistsByEmail(ctx, account.Email, ""); exists {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Email '%s' is already registered", account.Email))
	}
	m.seed(account)
	return nil
}

func (m *memoryStore) Update(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	current, ok := m.accounts[account.ID]
	if !ok || current.Version != account.Version {
		return appErrors.ErrConcurrentUpdate
	}
	account.Version++
	for _, t := range account.RefreshTokens {
		t.AccountID = account.ID
	}
	m.accounts[account.ID] = cloneAccount(account)
	m.updates++
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.accounts, id)
	return nil
}

func (m *memoryStore) RefreshTokenExists(ctx context.Context, token string) (bool, error) {
	if m.isTaken(token) {
		return true, nil
	}
	_, err := m.FindByRefreshToken(ctx, token)
	return err == nil, nil
}

func (m *memoryStore) VerificationTokenExists(ctx context.Context, token string) (bool, error) {
	_, err := m.FindByVerificationToken(ctx, token)
	return err == nil, nil
}

func (m *memoryStore) ResetTokenExists(ctx context.Context, token string) (bool, error) {
	_, err := m.find(func(a *models.Account) bool { return a.ResetToken != nil && *a.ResetToken == token })
	return err == nil, nil
}

func (m *memoryStore) isTaken(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taken[token]
}

func (m *memoryStore) LockRegistration(ctx context.Context) error { return nil }

// WithinTx restores the previous state when fn fails.
func (m *memoryStore) WithinTx(ctx context.Context, fn func(store repository.AccountStore) error) error {
	m.mu.Lock()
	snapshot := make(map[string]*models.Account, len(m.accounts))
	for id, a := range m.accounts {
		snapshot[id] = cloneAccount(a)
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.accounts = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

type sentEmail struct {
	kind   string
	email  string
	origin string
	token  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (n *recordingNotifier) record(e sentEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, e)
	return n.err
}

func (n *recordingNotifier) SendVerificationEmail(ctx context.Context, account *models.Account, origin string) error {
	return n.record(sentEmail{kind: models.EmailKindVerification, email: account.Email, origin: origin, token: deref(account.VerificationToken)})
}

func (n *recordingNotifier) SendAlreadyRegisteredEmail(ctx context.Context, email, origin string) error {
	return n.record(sentEmail{kind: models.EmailKindAlreadyRegistered, email: email, origin: origin})
}

func (n *recordingNotifier) SendPasswordResetEmail(ctx context.Context, account *models.Account, origin string) error {
	return n.record(sentEmail{kind: models.EmailKindPasswordReset, email: account.Email, origin: origin, token: deref(account.ResetToken)})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, e := range n.sent {
		out = append(out, e.kind)
	}
	return out
}

type logEntry struct {
	message        string
	identifierType string
	identifier     string
}

type recordingLogger struct {
	mu         sync.Mutex
	activities []logEntry
	errors     []logEntry
}

func (l *recordingLogger) Activity(ctx context.Context, message, identifierType, identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activities = append(l.activities, logEntry{message, identifierType, identifier})
}

func (l *recordingLogger) Error(ctx context.Context, message, stackTrace, identifierType, identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, logEntry{message, identifierType, identifier})
}

// clock is a settable time source shared by the services under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
