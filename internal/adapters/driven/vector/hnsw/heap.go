package hnsw

// scored is a node handle with its approximate similarity to a query.
type scored struct {
	id    int32
	score float32
}

// closer orders by higher score, then lower handle.
func closer(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id < b.id
}

// nearHeap pops the closest candidate first.
type nearHeap []scored

func (h nearHeap) Len() int           { return len(h) }
func (h nearHeap) Less(i, j int) bool { return closer(h[i], h[j]) }
func (h nearHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nearHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *nearHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// farHeap pops the furthest result first, bounding the result set.
type farHeap []scored

func (h farHeap) Len() int           { return len(h) }
func (h farHeap) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h farHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *farHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *farHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
