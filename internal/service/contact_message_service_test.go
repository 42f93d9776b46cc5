package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/craft-api/internal/models"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

type memoryContactRepo struct {
	messages map[string]*models.ContactMessage
	err      error
}

func (r *memoryContactRepo) List(ctx context.Context, isRead *bool, page, pageSize int) ([]models.ContactMessage, int, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	var out []models.ContactMessage
	for _, m := range r.messages {
		if isRead == nil || m.IsRead == *isRead {
			out = append(out, *m)
		}
	}
	return out, len(out), nil
}

func (r *memoryContactRepo) FindByID(ctx context.Context, id string) (*models.ContactMessage, error) {
	m, ok := r.messages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *m
	return &c, nil
}

func (r *memoryContactRepo) Create(ctx context.Context, message *models.ContactMessage) error {
	if r.err != nil {
		return r.err
	}
	message.ID = "m1"
	c := *message
	r.messages[message.ID] = &c
	return nil
}

func (r *memoryContactRepo) UpdateRead(ctx context.Context, id string, isRead bool, updatedAt time.Time) error {
	m, ok := r.messages[id]
	if !ok {
		return sql.ErrNoRows
	}
	m.IsRead = isRead
	m.UpdatedAt = &updatedAt
	return nil
}

func (r *memoryContactRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.messages[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.messages, id)
	return nil
}

func TestContactMessageServiceLifecycle(t *testing.T) {
	repo := &memoryContactRepo{messages: map[string]*models.ContactMessage{}}
	logs := &recordingLogger{}
	svc := NewContactMessageService(repo, logs, nil, nil)
	admin := &models.Account{ID: "admin-1", Role: models.RoleAdmin}

	created, err := svc.Create(context.Background(), models.CreateContactMessageRequest{Email: " visitor@example.com ", Subject: "Hello", Message: "Nice work"})
	require.NoError(t, err)
	assert.Equal(t, "visitor@example.com", created.Email)
	assert.False(t, created.IsRead)

	unread := false
	items, pagination, err := svc.List(context.Background(), &unread, 1, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 10, pagination.PageSize)

	updated, err := svc.MarkRead(context.Background(), admin, created.ID, models.UpdateContactMessageRequest{IsRead: true})
	require.NoError(t, err)
	assert.True(t, updated.IsRead)
	assert.NotNil(t, updated.UpdatedAt)

	require.NoError(t, svc.Delete(context.Background(), admin, created.ID))
	_, err = svc.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Len(t, logs.activities, 3)
	assert.Equal(t, "admin-1", logs.activities[2].identifier)
}

func TestContactMessageServiceErrors(t *testing.T) {
	repo := &memoryContactRepo{messages: map[string]*models.ContactMessage{}}
	svc := NewContactMessageService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateContactMessageRequest{Email: "nope", Subject: "s", Message: "m"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.MarkRead(context.Background(), nil, "missing", models.UpdateContactMessageRequest{IsRead: true})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	repo.err = errors.New("db down")
	_, _, err = svc.List(context.Background(), nil, 1, 10)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
