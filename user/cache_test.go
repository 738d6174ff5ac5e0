package user

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	entries map[string]string
	getErr  error
	sets    int
}

func (f *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.entries[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.sets++
	switch v := value.(type) {
	case []byte:
		f.entries[key] = string(v)
	case string:
		f.entries[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

type countingReader struct {
	users map[string]Summary
	calls int
}

func (r *countingReader) GetSummary(_ context.Context, id string) (Summary, error) {
	r.calls++
	s, ok := r.users[id]
	if !ok {
		return Summary{}, ErrNotFound
	}
	return s, nil
}

func TestCachedReaderReadsThrough(t *testing.T) {
	next := &countingReader{users: map[string]Summary{"u1": {ID: "u1", FirstName: "Asha", Role: RoleLandlord}}}
	cache := &fakeCache{entries: map[string]string{}}
	r := NewCachedReader(next, cache, time.Minute, nil)

	first, err := r.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	second, err := r.GetSummary(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, cache.sets)

	var cached Summary
	require.NoError(t, json.Unmarshal([]byte(cache.entries[summaryKeyPrefix+"u1"]), &cached))
	assert.Equal(t, "Asha", cached.FirstName)
}

func TestCachedReaderFallsBackOnCacheError(t *testing.T) {
	next := &countingReader{users: map[string]Summary{"u1": {ID: "u1"}}}
	cache := &fakeCache{entries: map[string]string{}, getErr: errors.New("connection refused")}
	r := NewCachedReader(next, cache, time.Minute, nil)

	s, err := r.GetSummary(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.ID)
	assert.Equal(t, 1, next.calls)
}

func TestCachedReaderDoesNotCacheMisses(t *testing.T) {
	next := &countingReader{users: map[string]Summary{}}
	cache := &fakeCache{entries: map[string]string{}}
	r := NewCachedReader(next, cache, time.Minute, nil)

	_, err := r.GetSummary(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, cache.sets)
}

func TestSummaryFullName(t *testing.T) {
	assert.Equal(t, "Asha Rao", Summary{FirstName: "Asha", LastName: "Rao"}.FullName())
	assert.Equal(t, "Asha", Summary{FirstName: "Asha"}.FullName())
}
