package partitions

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPartitions_Block(t *testing.T) {
	pb := &PartitionBuilder{NumItems: 10, NumPartitions: 3, Strategy: BlockPartition}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)

	require.Equal(t, 3, layout.NumPartitions)
	assert.Equal(t, []int{0, 1, 2, 3}, layout.Partitions[0].Items)
	assert.Equal(t, []int{4, 5, 6, 7}, layout.Partitions[1].Items)
	assert.Equal(t, []int{8, 9}, layout.Partitions[2].Items)
	assert.Equal(t, 2, layout.GetPartition(9))
	assert.Equal(t, -1, layout.GetPartition(10))

	stats := layout.PartitionStatistics()
	assert.Equal(t, 2, stats.MinItems)
	assert.Equal(t, 4, stats.MaxItems)
	assert.InDelta(t, 4/(10.0/3), stats.Imbalance, 1e-12)
}

func TestBuildPartitions_RoundRobin(t *testing.T) {
	pb := &PartitionBuilder{NumItems: 7, NumPartitions: 3, Strategy: RoundRobin}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 6}, layout.Partitions[0].Items)
	assert.Equal(t, []int{1, 4}, layout.Partitions[1].Items)
	assert.Equal(t, []int{2, 5}, layout.Partitions[2].Items)
}

func TestBuildPartitions_CostBalanced(t *testing.T) {
	cost := []float64{1, 1, 1, 1, 8, 4, 4}
	pb := &PartitionBuilder{NumItems: 7, NumPartitions: 2, Cost: cost, Strategy: CostBalanced}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 10.0, layout.Partitions[0].Cost)
	assert.Equal(t, 10.0, layout.Partitions[1].Cost)

	_, err = (&PartitionBuilder{NumItems: 3, NumPartitions: 2, Cost: cost, Strategy: CostBalanced}).BuildPartitions()
	assert.Error(t, err)
}

func TestBuildPartitions_FewItems(t *testing.T) {
	layout, err := (&PartitionBuilder{NumItems: 2, NumPartitions: 8}).BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 2, layout.NumPartitions)

	layout, err = (&PartitionBuilder{NumItems: 0, NumPartitions: 4}).BuildPartitions()
	require.NoError(t, err)
	assert.Equal(t, 1, layout.NumPartitions)
	_, ok := layout.Iterator(0).Next()
	assert.False(t, ok)

	_, err = (&PartitionBuilder{NumItems: 2, NumPartitions: 0}).BuildPartitions()
	assert.Error(t, err)
}

func TestValidateLayout_Detects(t *testing.T) {
	layout := &PartitionLayout{
		Partitions:    []Partition{{ID: 0, Items: []int{0, 1}, NumItems: 2}, {ID: 1, Items: []int{1}, NumItems: 1}},
		NumPartitions: 2,
		TotalItems:    2,
		IToP:          []int{0, 1},
	}
	assert.Error(t, layout.ValidateLayout())
}

func TestIterator_CoversEveryItemOnce(t *testing.T) {
	for _, st := range []PartitionStrategy{BlockPartition, RoundRobin, CostBalanced, DynamicQueue} {
		t.Run(st.String(), func(t *testing.T) {
			layout, err := (&PartitionBuilder{NumItems: 101, NumPartitions: 4, Strategy: st}).BuildPartitions()
			require.NoError(t, err)

			var (
				mu  sync.Mutex
				got []int
				wg  sync.WaitGroup
			)
			for w := 0; w < layout.NumPartitions; w++ {
				it := layout.Iterator(w)
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i, ok := it.Next(); ok; i, ok = it.Next() {
						mu.Lock()
						got = append(got, i)
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			sort.Ints(got)
			require.Len(t, got, 101)
			for i, v := range got {
				assert.Equal(t, i, v)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	for _, st := range []PartitionStrategy{BlockPartition, RoundRobin, CostBalanced, DynamicQueue} {
		got, err := ParseStrategy(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	_, err := ParseStrategy("metis")
	assert.Error(t, err)
}
