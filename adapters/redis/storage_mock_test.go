package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelkit/core"
)

func TestStore_IncrementStatSurfacesRedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewWithClient(client)

	mock.ExpectHIncrBy("travelkit:user:u1:stats", string(core.StatPlansCreated), 1).
		SetErr(errors.New("connection reset"))

	_, err := store.IncrementStat(context.Background(), "u1", core.StatPlansCreated, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to increment plans_created")
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AddVisitInvalidatesOnlyWhenNew(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewWithClient(client)
	ctx := context.Background()

	mock.ExpectSAdd("travelkit:user:u1:visited", "inani-beach").SetVal(1)
	mock.ExpectDel("travelkit:user:u1:snapshot").SetVal(1)
	mock.ExpectSAdd("travelkit:user:u1:visited", "inani-beach").SetVal(0)

	added, err := store.AddVisit(ctx, "u1", "inani-beach")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddVisit(ctx, "u1", "inani-beach")
	require.NoError(t, err)
	assert.False(t, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetVerifiedError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewWithClient(client)

	mock.ExpectHSet("travelkit:user:u1:profile", "verified", "true").SetErr(errors.New("READONLY"))

	err := store.SetVerified(context.Background(), "u1", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set verified")
	assert.NoError(t, mock.ExpectationsWereMet())
}
