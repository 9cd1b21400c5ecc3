package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGormStoreMalformedIDIsNotFound(t *testing.T) {
	t.Parallel()

	// No database is attached: a malformed id must be answered before any query.
	store := &GormStore{now: time.Now}
	ctx := context.Background()

	for _, id := range []string{"abc", "", "1234", "n1; DROP TABLE notifications"} {
		_, err := store.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound, id)

		_, err = store.MarkRead(ctx, id, time.Now())
		assert.ErrorIs(t, err, ErrNotFound, id)

		assert.ErrorIs(t, store.MarkEmailSent(ctx, id, time.Now()), ErrNotFound, id)
	}
}

func TestValidRecordID(t *testing.T) {
	t.Parallel()

	assert.True(t, validRecordID(uuid.NewString()))
	assert.False(t, validRecordID("abc"))
	assert.False(t, validRecordID(""))
}
