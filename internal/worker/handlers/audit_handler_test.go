package handlers

import (
	"context"
	"errors"
	"testing"

	"customerportal/internal/audit"
	"customerportal/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRecorder struct {
	entries []audit.Entry
	retErr  error
}

func (f *fakeRecorder) Record(_ context.Context, e audit.Entry) error {
	f.entries = append(f.entries, e)
	return f.retErr
}

func TestHandleAuditRecordSuccess(t *testing.T) {
	rec := &fakeRecorder{}
	h := NewAuditHandler(rec, zaptest.NewLogger(t))

	task, err := tasks.NewAuditRecordTask(audit.Entry{ID: "a1", EventType: audit.EventUserLogin, TenantID: 7})
	require.NoError(t, err)
	require.NoError(t, h.HandleAuditRecord(context.Background(), task))

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "a1", rec.entries[0].ID)
	assert.Equal(t, int64(7), rec.entries[0].TenantID)
}

func TestHandleAuditRecordPropagatesStoreError(t *testing.T) {
	expected := errors.New("db down")
	h := NewAuditHandler(&fakeRecorder{retErr: expected}, zaptest.NewLogger(t))

	task, err := tasks.NewAuditRecordTask(audit.Entry{ID: "a2"})
	require.NoError(t, err)
	assert.ErrorIs(t, h.HandleAuditRecord(context.Background(), task), expected)
}

func TestHandleAuditRecordInvalidPayloadSkipsRetry(t *testing.T) {
	rec := &fakeRecorder{}
	h := NewAuditHandler(rec, zaptest.NewLogger(t))

	err := h.HandleAuditRecord(context.Background(), asynq.NewTask(tasks.TypeAuditRecord, []byte("not-json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, rec.entries)
}
