package crdtdoc

import "strings"

// NodeKey globally identifies one inserted character: the (origin, seq) pair
// assigned by whichever client first created it. The zero value is used as
// the sentinel "beginning of document" parent.
type NodeKey struct {
	Origin uint64
	Seq    uint64
}

type rgaNode struct {
	id      NodeKey
	after   NodeKey
	ch      rune
	deleted bool
}

// rga is a Replicated Growable Array for collaborative plain text, grounded
// on the sketch in Polqt-golang-journey's crdt package (RGANode/RGANodeID)
// but with Insert/Delete/Text fully implemented rather than left as TODOs.
type rga struct {
	nodes []rgaNode
}

func newRGA() *rga {
	return &rga{}
}

func (r *rga) indexOf(id NodeKey) int {
	if id == (NodeKey{}) {
		return -1
	}
	for i := range r.nodes {
		if r.nodes[i].id == id {
			return i
		}
	}
	return -1
}

// higherPriority reports whether a must be ordered before b when both are
// concurrent inserts after the same parent: higher sequence number wins,
// ties broken by origin.
func higherPriority(a, b NodeKey) bool {
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	return a.Origin > b.Origin
}

// insert places a new character node after the node identified by after,
// returning false if the node already exists (idempotent replay).
func (r *rga) insert(id, after NodeKey, ch rune) bool {
	if r.indexOf(id) != -1 {
		return false
	}

	pos := 0
	if after != (NodeKey{}) {
		idx := r.indexOf(after)
		if idx == -1 {
			// Parent not seen yet (out-of-order delivery). This minimal
			// implementation appends defensively rather than buffering the
			// operation, since whole-document syncs are expected to carry
			// ops in causal order.
			r.nodes = append(r.nodes, rgaNode{id: id, after: after, ch: ch})
			return true
		}
		pos = idx + 1
	}

	for pos < len(r.nodes) && r.nodes[pos].after == after && higherPriority(r.nodes[pos].id, id) {
		pos++
	}

	r.nodes = append(r.nodes, rgaNode{})
	copy(r.nodes[pos+1:], r.nodes[pos:])
	r.nodes[pos] = rgaNode{id: id, after: after, ch: ch}
	return true
}

// delete tombstones the node identified by id, returning false if unknown.
func (r *rga) delete(id NodeKey) bool {
	idx := r.indexOf(id)
	if idx == -1 {
		return false
	}
	r.nodes[idx].deleted = true
	return true
}

// text renders the live (non-tombstoned) characters in order.
func (r *rga) text() string {
	var b strings.Builder
	for _, n := range r.nodes {
		if !n.deleted {
			b.WriteRune(n.ch)
		}
	}
	return b.String()
}
