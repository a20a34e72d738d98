package partitions

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
)

// PartitionStrategy defines how items are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive items
	RoundRobin                              // Distribute cyclically
	CostBalanced                            // Greedy longest cost first
	DynamicQueue                            // Workers pull items from a shared queue
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	case CostBalanced:
		return "cost-balanced"
	case DynamicQueue:
		return "dynamic"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy accepts the names printed by String
func ParseStrategy(s string) (PartitionStrategy, error) {
	for _, st := range []PartitionStrategy{BlockPartition, RoundRobin, CostBalanced, DynamicQueue} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown partition strategy %q", s)
}

// PartitionBuilder assigns NumItems work items to at most NumPartitions
// partitions. Cost, when given, estimates the relative work of each item.
type PartitionBuilder struct {
	NumItems      int
	NumPartitions int
	Cost          []float64
	Strategy      PartitionStrategy
}

// BuildPartitions creates the layout. Fewer partitions than requested are
// created when there are fewer items than partitions.
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumItems < 0 {
		return nil, fmt.Errorf("negative item count %d", pb.NumItems)
	}
	if pb.NumPartitions < 1 {
		return nil, fmt.Errorf("at least one partition is required, got %d", pb.NumPartitions)
	}
	if pb.Cost != nil && len(pb.Cost) != pb.NumItems {
		return nil, fmt.Errorf("%d cost estimates for %d items", len(pb.Cost), pb.NumItems)
	}
	numPartitions := pb.calculateNumPartitions()
	iToP := pb.partitionItems(numPartitions)

	layout := &PartitionLayout{
		Partitions:    pb.createPartitions(iToP, numPartitions),
		NumPartitions: numPartitions,
		TotalItems:    pb.NumItems,
		Strategy:      pb.Strategy,
		IToP:          iToP,
	}
	if pb.Strategy == DynamicQueue {
		layout.next = new(atomic.Int64)
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

func (pb *PartitionBuilder) calculateNumPartitions() int {
	n := pb.NumPartitions
	if pb.NumItems < n {
		n = pb.NumItems
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (pb *PartitionBuilder) cost(i int) float64 {
	if pb.Cost == nil {
		return 1
	}
	return pb.Cost[i]
}

// partitionItems assigns items to partitions
func (pb *PartitionBuilder) partitionItems(numPartitions int) []int {
	iToP := make([]int, pb.NumItems)

	switch pb.Strategy {
	case RoundRobin:
		for i := range iToP {
			iToP[i] = i % numPartitions
		}

	case CostBalanced:
		order := make([]int, pb.NumItems)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return pb.cost(order[a]) > pb.cost(order[b]) })
		load := make([]float64, numPartitions)
		for _, i := range order {
			best := 0
			for p := 1; p < numPartitions; p++ {
				if load[p] < load[best] {
					best = p
				}
			}
			iToP[i] = best
			load[best] += pb.cost(i)
		}

	case DynamicQueue:
		for i := range iToP {
			iToP[i] = -1
		}

	default:
		perPartition := int(math.Ceil(float64(pb.NumItems) / float64(numPartitions)))
		for i := range iToP {
			iToP[i] = i / perPartition
			if iToP[i] >= numPartitions {
				iToP[i] = numPartitions - 1
			}
		}
	}
	return iToP
}

func (pb *PartitionBuilder) createPartitions(iToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)
	for i := range partitions {
		partitions[i] = Partition{ID: i, Items: make([]int, 0)}
	}
	for item, part := range iToP {
		if part < 0 {
			continue
		}
		partitions[part].Items = append(partitions[part].Items, item)
		partitions[part].NumItems++
		partitions[part].Cost += pb.cost(item)
	}
	return partitions
}

// PartitionStatistics computes load balance metrics. Dynamic layouts report
// the expected even split.
func (layout *PartitionLayout) PartitionStatistics() PartitionStats {
	stats := PartitionStats{
		NumPartitions: layout.NumPartitions,
		MinItems:      math.MaxInt32,
		AvgItems:      float64(layout.TotalItems) / float64(layout.NumPartitions),
	}
	if layout.Strategy == DynamicQueue {
		stats.MinItems = layout.TotalItems / layout.NumPartitions
		stats.MaxItems = int(math.Ceil(stats.AvgItems))
	} else {
		for _, p := range layout.Partitions {
			if p.NumItems < stats.MinItems {
				stats.MinItems = p.NumItems
			}
			if p.NumItems > stats.MaxItems {
				stats.MaxItems = p.NumItems
			}
		}
	}
	if stats.AvgItems > 0 {
		stats.Imbalance = float64(stats.MaxItems) / stats.AvgItems
	}
	return stats
}

type PartitionStats struct {
	NumPartitions int
	MinItems      int
	MaxItems      int
	AvgItems      float64
	Imbalance     float64 // MaxItems / AvgItems
}

// Iterator yields the items a worker should process. Static layouts walk the
// worker's partition; dynamic layouts share one counter among all workers.
type Iterator struct {
	items []int
	pos   int
	next  *atomic.Int64
	total int
}

// Iterator returns the item source for worker p. All iterators of a dynamic
// layout must come from the same layout value.
func (layout *PartitionLayout) Iterator(p int) *Iterator {
	if layout.Strategy == DynamicQueue {
		return &Iterator{next: layout.queue(), total: layout.TotalItems}
	}
	return &Iterator{items: layout.Partitions[p].Items}
}

// Next returns the next item, false when exhausted
func (it *Iterator) Next() (int, bool) {
	if it.next != nil {
		i := int(it.next.Add(1) - 1)
		if i >= it.total {
			return 0, false
		}
		return i, true
	}
	if it.pos >= len(it.items) {
		return 0, false
	}
	it.pos++
	return it.items[it.pos-1], true
}
