package interval

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverageMonitorBasic(t *testing.T) {
	m := NewCoverageMonitor(10)
	assert.EqualValues(t, 0, m.MaxInRange(0, 9))
	m.Add(2, 5)
	assert.EqualValues(t, 1, m.MaxInRange(0, 9))
	assert.EqualValues(t, 0, m.MaxInRange(6, 9))
	m.Add(4, 7)
	assert.EqualValues(t, 2, m.MaxInRange(4, 5))
	assert.EqualValues(t, 1, m.MaxInRange(6, 7))
	assert.EqualValues(t, 0, m.MaxInRange(0, 1))
}

func TestCoverageMonitorAgainstBruteForce(t *testing.T) {
	const n = 40
	m := NewCoverageMonitor(n)
	brute := make([]int32, n)
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 500; iter++ {
		begin := rng.Intn(n)
		end := begin + rng.Intn(n-begin)
		m.Add(begin, end)
		for i := begin; i <= end; i++ {
			brute[i]++
		}
		qb := rng.Intn(n)
		qe := qb + rng.Intn(n-qb)
		var want int32
		for i := qb; i <= qe; i++ {
			if brute[i] > want {
				want = brute[i]
			}
		}
		require.EqualValues(t, want, m.MaxInRange(qb, qe), "iteration %d range [%d,%d]", iter, qb, qe)
	}
}
