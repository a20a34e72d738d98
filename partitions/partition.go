// Package partitions divides independent work items, such as the points of
// a frequency sweep, among a fixed number of workers.
package partitions

import (
	"fmt"
	"sync/atomic"
)

// Partition is the set of work items one worker executes, in order
type Partition struct {
	ID int

	Items    []int // Global item indices
	NumItems int
	Cost     float64 // Sum of the item cost estimates
}

// PartitionLayout is the complete assignment of items to partitions
type PartitionLayout struct {
	Partitions    []Partition
	NumPartitions int
	TotalItems    int
	Strategy      PartitionStrategy

	// Item to partition mapping, -1 for items left to a dynamic queue
	IToP []int

	next *atomic.Int64 // Shared cursor of a dynamic queue
}

func (pl *PartitionLayout) queue() *atomic.Int64 {
	if pl.next == nil {
		pl.next = new(atomic.Int64)
	}
	return pl.next
}

// GetPartition returns the partition owning item i
func (pl *PartitionLayout) GetPartition(item int) int {
	if item < 0 || item >= len(pl.IToP) {
		return -1
	}
	return pl.IToP[item]
}

// ValidateLayout checks that every item is owned by exactly one partition,
// or by none under the dynamic strategy
func (pl *PartitionLayout) ValidateLayout() error {
	if len(pl.Partitions) != pl.NumPartitions {
		return fmt.Errorf("%d partitions, NumPartitions=%d", len(pl.Partitions), pl.NumPartitions)
	}
	if len(pl.IToP) != pl.TotalItems {
		return fmt.Errorf("IToP covers %d items, TotalItems=%d", len(pl.IToP), pl.TotalItems)
	}
	seen := make([]int, pl.TotalItems)
	for _, p := range pl.Partitions {
		if p.NumItems != len(p.Items) {
			return fmt.Errorf("partition %d: NumItems %d != %d items", p.ID, p.NumItems, len(p.Items))
		}
		for _, it := range p.Items {
			if it < 0 || it >= pl.TotalItems {
				return fmt.Errorf("partition %d: item %d out of range", p.ID, it)
			}
			if pl.IToP[it] != p.ID {
				return fmt.Errorf("partition %d: item %d mapped to partition %d", p.ID, it, pl.IToP[it])
			}
			seen[it]++
		}
	}
	for it, n := range seen {
		switch {
		case pl.Strategy == DynamicQueue && n == 0 && pl.IToP[it] == -1:
		case n != 1:
			return fmt.Errorf("item %d assigned %d times", it, n)
		}
	}
	return nil
}
