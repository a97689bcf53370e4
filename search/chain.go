package search

import (
	"sort"

	"smile/fault"
	"smile/safety"
)

// Chain runs steps in sequence, each over every survivor of the one before.
// The returned tables line up with steps.
func Chain(tab *safety.Table, arena *Arena, roots []int32, steps ...Step) ([]*Table, []Stats, error) {
	tables := make([]*Table, 0, len(steps))
	stats := make([]Stats, 0, len(steps))
	parents := roots
	for _, s := range steps {
		t, st, err := Run(tab, arena, parents, s)
		stats = append(stats, st)
		if err != nil {
			return tables, stats, err
		}
		tables = append(tables, t)
		parents = t.Indices()
	}
	return tables, stats, nil
}

// Pair is one head/tail combination picked by Cross.
type Pair struct {
	Head  int32
	Tail  int32
	Score int
}

type CrossResult struct {
	Best  Pair
	Count int
}

type tailBucket struct {
	score int
	count int
	first int32
}

// Cross combines every head with every tail, in ascending state order for
// both, and returns the strictly cheapest combination accepted by keep
// together with the number of accepted combinations. A nil headOK accepts
// every head. keep only sees the combined score, so tails are grouped by
// score and each group is judged once per head.
func Cross(head, tail *Table, headOK func(c *Candidate) bool, keep func(score int) bool) (CrossResult, error) {
	var buckets []tailBucket
	byScore := map[int]int{}
	tail.Each(func(idx int32, c *Candidate) {
		if b, ok := byScore[c.Score]; ok {
			buckets[b].count++
			return
		}
		byScore[c.Score] = len(buckets)
		buckets = append(buckets, tailBucket{score: c.Score, count: 1, first: idx})
	})
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].score < buckets[j].score })

	res := CrossResult{Best: Pair{Head: None, Tail: None}}
	head.Each(func(idx int32, c *Candidate) {
		if headOK != nil && !headOK(c) {
			return
		}
		picked := false
		for _, b := range buckets {
			score := c.Score + b.score
			if !keep(score) {
				continue
			}
			res.Count += b.count
			if !picked {
				picked = true
				if res.Best.Head == None || score < res.Best.Score {
					res.Best = Pair{Head: idx, Tail: b.first, Score: score}
				}
			}
		}
	})
	if res.Count == 0 {
		return res, fault.Exhausted("cross", "no valid combination among %d heads and %d tails", head.Len(), tail.Len())
	}
	return res, nil
}
