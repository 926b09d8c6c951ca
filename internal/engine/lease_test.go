package engine

import (
	"context"
	"testing"
	"time"

	redismock "github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLease_SecondAcquireFailsUntilRelease(t *testing.T) {
	l := NewLocalLease()
	ctx := context.Background()

	got, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, got, "a second acquire must fail while the first holder has not released")

	require.NoError(t, l.Release(ctx))

	got, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, got, "acquire must succeed again after release")
}

func TestRedisLease_AcquireUsesSetNX(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisLease(client, "optimizercore:tick-lease", "token-a", 30*time.Second)

	mock.ExpectSetNX("optimizercore:tick-lease", "token-a", 30*time.Second).SetVal(true)

	got, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLease_ReleaseOnlyDeletesOwnToken(t *testing.T) {
	client, mock := redismock.NewClientMock()
	l := NewRedisLease(client, "optimizercore:tick-lease", "token-a", 30*time.Second)

	mock.ExpectEval(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`, []string{"optimizercore:tick-lease"}, []interface{}{"token-a"}).SetVal(int64(1))

	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
