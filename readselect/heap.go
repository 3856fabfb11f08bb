package readselect

import "container/heap"

// scoredItem is one entry in the indexed priority queue: a read index and its
// current score. Ties break by ascending read index (§4.3 "Determinism").
type scoredItem struct {
	readIdx int
	score   int
	heapPos int
}

// indexedQueue is a max-heap by score (ties broken by ascending readIdx) that
// also supports O(log n) score mutation for an already-queued item, per the
// design note in §9 ("Priority-queue score mutation"): entries are located by
// read index via a side table (posOf) rather than by linear scan.
type indexedQueue struct {
	items []*scoredItem
	posOf map[int]*scoredItem
}

func newIndexedQueue() *indexedQueue {
	return &indexedQueue{posOf: make(map[int]*scoredItem)}
}

func (q *indexedQueue) Len() int { return len(q.items) }

func (q *indexedQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.score != b.score {
		return a.score > b.score
	}
	return a.readIdx < b.readIdx
}

func (q *indexedQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].heapPos = i
	q.items[j].heapPos = j
}

func (q *indexedQueue) Push(x interface{}) {
	it := x.(*scoredItem)
	it.heapPos = len(q.items)
	q.items = append(q.items, it)
}

func (q *indexedQueue) Pop() interface{} {
	n := len(q.items)
	it := q.items[n-1]
	q.items = q.items[:n-1]
	return it
}

// push adds a read with an initial score.
func (q *indexedQueue) push(readIdx, score int) {
	it := &scoredItem{readIdx: readIdx, score: score}
	q.posOf[readIdx] = it
	heap.Push(q, it)
}

// popBest removes and returns the read index with the current best score, or
// ok=false if the queue is empty.
func (q *indexedQueue) popBest() (readIdx int, ok bool) {
	if q.Len() == 0 {
		return 0, false
	}
	it := heap.Pop(q).(*scoredItem)
	delete(q.posOf, it.readIdx)
	return it.readIdx, true
}

// changeScore adjusts the score of an already-queued read, if present, and
// re-heapifies in O(log n). No-op if the read isn't queued (it may already
// have been popped or never enqueued).
func (q *indexedQueue) changeScore(readIdx int, delta int) {
	it, ok := q.posOf[readIdx]
	if !ok {
		return
	}
	it.score += delta
	heap.Fix(q, it.heapPos)
}

func (q *indexedQueue) empty() bool { return len(q.items) == 0 }
