package ivf

import (
	"context"

	"github.com/hupe1980/vecindex/distance"
	"github.com/hupe1980/vecindex/index"
	"github.com/hupe1980/vecindex/vector"
)

// Insert appends v under id to the list of its nearest centroid.
func (x *Index) Insert(ctx context.Context, id uint64, v vector.Vector) error {
	if err := x.checkReady(); err != nil {
		return err
	}
	return x.insert(ctx, id, v)
}

func (x *Index) insert(ctx context.Context, id uint64, v vector.Vector) error {
	q, err := x.space.Query(v)
	if err != nil {
		return err
	}

	x.idMu.Lock()
	if _, ok := x.owners[id]; ok {
		x.idMu.Unlock()
		return index.InvalidParameter("id", "%d already exists", id)
	}
	seq := x.clock.Add(1)
	l := x.lists[nearestList(q, x.lists)]
	x.owners[id] = owner{list: l.id, seq: seq}
	// A Delete of id must find the member record on the chain, so the list
	// is locked before id becomes visible.
	l.mu.Lock()
	x.idMu.Unlock()

	err = l.chain.Append(ctx, appendMember(nil, seq, id, v))
	if err == nil {
		l.members++
	}
	l.mu.Unlock()

	if err != nil {
		x.idMu.Lock()
		if o, ok := x.owners[id]; ok && o.seq == seq {
			delete(x.owners, id)
		}
		x.idMu.Unlock()
		return err
	}
	return nil
}

// nearestList returns the list whose centroid is closest to q. Ties go to
// the lowest list id.
func nearestList(q *distance.Query, lists []*list) int {
	best, bestDist := 0, 0.0
	for i, l := range lists {
		if d := q.Distance(l.centroid); i == 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Delete tombstones id. Deleting an unknown id is a no-op.
func (x *Index) Delete(ctx context.Context, id uint64) error {
	if err := x.checkReady(); err != nil {
		return err
	}

	x.idMu.Lock()
	o, ok := x.owners[id]
	if ok {
		delete(x.owners, id)
	}
	x.idMu.Unlock()
	if !ok {
		return nil
	}

	l := x.lists[o.list]
	l.mu.Lock()
	err := l.chain.Append(ctx, appendTombstone(nil, o.seq, id))
	if err == nil {
		l.dead.Add(o.seq)
		l.members--
	}
	l.mu.Unlock()

	if err != nil {
		x.idMu.Lock()
		if _, taken := x.owners[id]; !taken {
			x.owners[id] = o
		}
		x.idMu.Unlock()
		return err
	}
	return nil
}
