package booking

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_PreferredCoversCount(t *testing.T) {
	preferred := []string{"A1", "A2", "B1", "B2", "C1"}

	for count := 1; count <= len(preferred); count++ {
		plans := Allocate(preferred, count)
		require.Len(t, plans, 1, "count=%d", count)
		assert.Equal(t, SourcePreferred, plans[0].Source)
		assert.Equal(t, preferred[:count], plans[0].Seats)
		assert.Equal(t, count, plans[0].Count)
	}
}

func TestAllocate_FallbackOrder(t *testing.T) {
	plans := Allocate([]string{"A1"}, 3)

	require.Len(t, plans, 3)
	assert.Equal(t, SourceGenericPattern, plans[0].Source)
	assert.Equal(t, SourceCommonPattern, plans[1].Source)
	assert.Equal(t, SourceCountOnly, plans[2].Source)
	assert.Empty(t, plans[2].Seats)
	assert.Equal(t, 3, plans[2].Count)
}

func TestAllocate_DoesNotAliasPreferred(t *testing.T) {
	preferred := []string{"A1", "B1"}
	plans := Allocate(preferred, 2)
	plans[0].Seats[0] = "Z9"
	assert.Equal(t, "A1", preferred[0])
}

func TestGenericPattern_Known(t *testing.T) {
	assert.Equal(t, []string{"A1", "B1", "C1"}, GenericPattern(3))
	assert.Equal(t, []string{"A1", "B1", "C1", "D1", "E1", "F1", "A2"}, GenericPattern(7))
}

func TestGenericPattern_DistinctAndDeterministic(t *testing.T) {
	re := regexp.MustCompile(`^[A-F][1-9][0-9]*$`)
	for _, count := range []int{1, 6, 7, 40} {
		t.Run(fmt.Sprintf("count=%d", count), func(t *testing.T) {
			seats := GenericPattern(count)
			require.Len(t, seats, count)

			seen := make(map[string]bool, count)
			for _, s := range seats {
				assert.Regexp(t, re, s)
				assert.False(t, seen[s], "duplicate seat %s", s)
				seen[s] = true
			}
			assert.Equal(t, seats, GenericPattern(count))
		})
	}
}

func TestCommonPattern_Known(t *testing.T) {
	assert.Equal(t, []string{"1A", "1B", "1C", "1D", "1E"}, CommonPattern(5))
	assert.Equal(t, []string{"1A", "1B", "1C", "1D", "1E", "1F", "2A", "2B"}, CommonPattern(8))
}

func TestCommonPattern_PadsAfterTemplates(t *testing.T) {
	seats := CommonPattern(len(commonTemplates) + 2)
	require.Len(t, seats, len(commonTemplates)+2)
	assert.Equal(t, "S6", seats[len(commonTemplates)-1])
	assert.Equal(t, "S7", seats[len(commonTemplates)])
	assert.Equal(t, "S8", seats[len(commonTemplates)+1])
}
