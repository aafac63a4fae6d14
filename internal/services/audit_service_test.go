package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_RecordPersistsAndLogs(t *testing.T) {
	var stored *models.AuditEvent
	repo := &MockAuditEventRepository{
		CreateFunc: func(_ context.Context, e *models.AuditEvent) error {
			stored = e
			return nil
		},
	}
	var buf bytes.Buffer
	svc := NewAuditService(repo, slog.New(slog.NewJSONHandler(&buf, nil)))

	actor := NewTestAccount(models.RoleAdmin).Actor()
	svc.Record(context.Background(), models.NewAuditEvent(actor, models.AuditView, models.ResourceStudent, "stu-1",
		models.RequestMeta{IPAddress: "10.1.2.3", UserAgent: "test"}))

	require.NotNil(t, stored)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Equal(t, actor.ID, stored.ActorID)
	assert.Equal(t, "10.1.2.3", stored.IPAddress)
	assert.Contains(t, buf.String(), `"msg":"audit"`)
	assert.NotContains(t, buf.String(), actor.Email)
}

func TestAuditService_RecordSwallowsStoreErrors(t *testing.T) {
	repo := &MockAuditEventRepository{
		CreateFunc: func(context.Context, *models.AuditEvent) error { return errors.New("disk full") },
	}
	svc := NewAuditService(repo, slog.Default())

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), models.NewAuditEvent(models.Actor{}, models.AuditLogin, models.ResourceAuth, "", models.RequestMeta{}))
	})
}

func TestAuditService_List(t *testing.T) {
	repo := &MockAuditEventRepository{
		ListFunc: func(_ context.Context, f models.AuditFilter) ([]*models.AuditEvent, error) {
			if f.ResourceType == "broken" {
				return nil, errors.New("timeout")
			}
			return []*models.AuditEvent{{Kind: f.Kind, ResourceType: f.ResourceType}}, nil
		},
	}
	svc := NewAuditService(repo, slog.Default())
	ctx := context.Background()

	events, err := svc.List(ctx, models.AuditFilter{Kind: models.AuditDelete, ResourceType: models.ResourceStudent})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditDelete, events[0].Kind)

	_, err = svc.List(ctx, models.AuditFilter{Kind: "purge"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.List(ctx, models.AuditFilter{ResourceType: "broken"})
	assert.ErrorIs(t, err, models.ErrInternalServer)
}
