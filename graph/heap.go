package graph

import "container/heap"

// pqItem is one Dijkstra frontier entry. Ordering implements the
// resolver's tie-break: shortest distance first, then more
// preferred-registry hops along the path, then lower summed cap
// priority (no example repo carries a graph/heap library, so this
// priority queue is the standard library's container/heap).
type pqItem struct {
	registry      string
	dist          int
	preferredHops int
	prioritySum   int
	index         int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	if a.preferredHops != b.preferredHops {
		return a.preferredHops > b.preferredHops
	}
	return a.prioritySum < b.prioritySum
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}

func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

var _ heap.Interface = (*priorityQueue)(nil)
