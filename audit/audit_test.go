package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type failingStore struct{ loadErr, saveErr error }

func (f failingStore) Load(context.Context, string) (string, error) { return "", f.loadErr }
func (f failingStore) Save(context.Context, string, string) error   { return f.saveErr }

func fixedClock() time.Time {
	return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
}

func TestLogAppendsInOrder(t *testing.T) {
	log := NewLog(NewInMemoryStore())
	log.now = fixedClock
	ctx := context.Background()

	log.LogVerification(ctx, "Visa", "VSA-1111", "a@b.com")
	log.LogScan(ctx, "Amazon", "c@d.com", "data:image/jpeg;base64,AA", "data:image/jpeg;base64,BB", "balance")

	entries, err := log.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, Entry{Kind: KindVerification, Brand: "Visa", Code: "VSA-1111", Email: "a@b.com", Time: "2026-10-17 09:30:00"}, entries[0])
	require.Equal(t, KindScan, entries[1].Kind)
	require.Equal(t, "balance", entries[1].Mode)
	require.Equal(t, "data:image/jpeg;base64,BB", entries[1].Back)
}

func TestLogSwallowsStorageFailures(t *testing.T) {
	tests := []struct {
		name  string
		store Store
	}{
		{"load fails", failingStore{loadErr: errors.New("quota")}},
		{"save fails", failingStore{loadErr: ErrNotFound, saveErr: errors.New("quota exceeded")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewLog(tt.store)
			require.NotPanics(t, func() {
				log.LogVerification(context.Background(), "Visa", "VSA-1", "a@b.com")
			})
		})
	}
}

func TestLogDropsEntryWhenExistingValueIsCorrupt(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Save(context.Background(), DefaultKey, "{not json"))

	log := NewLog(store)
	log.LogVerification(context.Background(), "Visa", "VSA-1", "a@b.com")

	raw, err := store.Load(context.Background(), DefaultKey)
	require.NoError(t, err)
	require.Equal(t, "{not json", raw)
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	log := NewLog(NewInMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.LogVerification(ctx, "Steam", "STM-0", "x@y.z")
		}()
	}
	wg.Wait()

	entries, err := log.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 25)
}

func TestRedisStore(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, "giftsafer")
	ctx := context.Background()

	_, err := store.Load(ctx, DefaultKey)
	require.ErrorIs(t, err, ErrNotFound)

	log := NewLog(store)
	log.LogVerification(ctx, "Visa", "VSA-1111", "a@b.com")

	require.True(t, mr.Exists("giftsafer:audit:adminLogs"))
	entries, err := log.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "VSA-1111", entries[0].Code)
}

func TestRedisStoreUnavailableIsSilent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	log := NewLog(NewRedisStore(client, "giftsafer"))
	mr.Close()

	require.NotPanics(t, func() {
		log.LogVerification(context.Background(), "Visa", "VSA-1111", "a@b.com")
	})
}

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "k", "v1"))
	require.NoError(t, store.Save(ctx, "k", "v2"))
	got, err := store.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", got)
}
