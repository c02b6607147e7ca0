package names

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Resolve(t *testing.T) {
	g := NewGenerator()

	t.Run("same seed gives same name", func(t *testing.T) {
		for _, seed := range []int64{0, 1, 123, -7, 987654321} {
			assert.Equal(t, g.Resolve(seed), g.Resolve(seed), "seed %d", seed)
		}
	})

	t.Run("separate generators agree", func(t *testing.T) {
		assert.Equal(t, g.Resolve(42), NewGenerator().Resolve(42))
	})

	t.Run("name is two capitalised words", func(t *testing.T) {
		parts := strings.Split(g.Resolve(123), " ")
		require.Len(t, parts, 2)
		for _, p := range parts {
			require.NotEmpty(t, p)
			assert.Equal(t, strings.ToUpper(p[:1]), p[:1])
		}
	})

	t.Run("seeds spread across names", func(t *testing.T) {
		seen := make(map[string]struct{})
		for seed := int64(0); seed < 50; seed++ {
			seen[g.Resolve(seed)] = struct{}{}
		}
		assert.Greater(t, len(seen), 25)
	})
}

func TestGenerator_ResolveConcurrent(t *testing.T) {
	g := NewGenerator()
	want := g.Resolve(7)

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// interleave other seeds to catch shared state
			g.Resolve(int64(i))
			results[i] = g.Resolve(7)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
