package registry

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry_ResolveRoundTrip(t *testing.T) {
	r := NewMemoryRegistry(Options{})

	r.Register("Ab3dE6gH", "1700000000000-report.pdf")

	assert.Equal(t, "1700000000000-report.pdf", r.Resolve("Ab3dE6gH"))
	key, ok := r.Lookup("Ab3dE6gH")
	assert.True(t, ok)
	assert.Equal(t, "1700000000000-report.pdf", key)
	assert.Equal(t, 1, r.Len())
}

func TestMemoryRegistry_ResolvePassThrough(t *testing.T) {
	r := NewMemoryRegistry(Options{})

	assert.Equal(t, "1700000000000-raw.bin", r.Resolve("1700000000000-raw.bin"))
	_, ok := r.Lookup("1700000000000-raw.bin")
	assert.False(t, ok)
}

func TestMemoryRegistry_RegisterOverwrites(t *testing.T) {
	r := NewMemoryRegistry(Options{})

	r.Register("dup", "first")
	r.Register("dup", "second")

	assert.Equal(t, "second", r.Resolve("dup"))
	assert.Equal(t, 1, r.Len())
}

func TestMemoryRegistry_TTL(t *testing.T) {
	r := NewMemoryRegistry(Options{TTL: 20 * time.Millisecond})

	r.Register("short", "key")
	assert.Equal(t, "key", r.Resolve("short"))

	assert.Eventually(t, func() bool {
		return r.Resolve("short") == "short"
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryRegistry_MaxEntries(t *testing.T) {
	r := NewMemoryRegistry(Options{MaxEntries: 2})

	r.Register("a", "ka")
	r.Register("b", "kb")
	r.Register("c", "kc")

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "a", r.Resolve("a"))
	assert.Equal(t, "kc", r.Resolve("c"))
}

func TestMemoryRegistry_Concurrent(t *testing.T) {
	r := NewMemoryRegistry(Options{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i)
			r.Register(id, "key-"+id)
			assert.Equal(t, "key-"+id, r.Resolve(id))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}

func TestNewShortID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := NewShortID(ShortIDLength)
		require.NoError(t, err)
		assert.Len(t, id, ShortIDLength)
		for _, c := range id {
			assert.True(t, strings.ContainsRune(alphabet, c), "unexpected rune %q", c)
		}
		seen[id] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)

	_, err := NewShortID(0)
	assert.Error(t, err)
}
