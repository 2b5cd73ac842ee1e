package id

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID(t *testing.T) {
	u, err := uuid.Parse(UUID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), u.Version())
}

func TestULID_Format(t *testing.T) {
	for range 100 {
		u := ULID()
		assert.Len(t, u, 26)
		assert.True(t, IsValidULID(u), u)
		assert.NotContains(t, u, "I")
		assert.NotContains(t, u, "L")
		assert.NotContains(t, u, "O")
		assert.NotContains(t, u, "U")
	}
}

func TestULID_SortsByTime(t *testing.T) {
	first := ULID()
	time.Sleep(2 * time.Millisecond)
	second := ULID()

	ids := []string{second, first}
	sort.Strings(ids)
	assert.Equal(t, []string{first, second}, ids)
}

func TestULID_ConcurrentUnique(t *testing.T) {
	const n = 1000
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := Rule()
			mu.Lock()
			seen[u] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestULIDTime(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	u := ULID()
	ts, err := ULIDTime(u)
	require.NoError(t, err)
	assert.False(t, ts.Before(before))
	assert.WithinDuration(t, time.Now(), ts, time.Second)

	_, err = ULIDTime("not-a-ulid")
	assert.Error(t, err)
}

func TestEncodeULID(t *testing.T) {
	var zero [10]byte
	assert.Equal(t, "00000000000000000000000000", encodeULID(0, zero))

	var ones [10]byte
	for i := range ones {
		ones[i] = 0xFF
	}
	assert.Equal(t, "0000000001ZZZZZZZZZZZZZZZZ", encodeULID(1, ones))
}

func TestIsValidULID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"01ARZ3NDEKTSV4RRFFQ69G5FA", false},
		{"01ARZ3NDEKTSV4RRFFQ69G5FAI", false},
		{"01arz3ndektsv4rrffq69g5fav", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidULID(tt.in), tt.in)
	}
}
