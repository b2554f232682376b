package crdtdoc

import "sort"

// Document is the CRDT text document a Room actor owns exclusively. It
// layers state-vector diffing and an append-only per-origin op log on top
// of the rga, mirroring the document/state-vector contract the wire
// protocol's Sync message expects (see doc/document.rs in the reference
// implementation this package's semantics are ported from).
type Document struct {
	text *rga
	// log holds every accepted op in append order, per origin, so a peer's
	// state vector (origin -> highest seq seen) tells us exactly which
	// suffix of each origin's log it still needs.
	log map[uint64][]op
}

func NewDocument() *Document {
	return &Document{
		text: newRGA(),
		log:  make(map[uint64][]op),
	}
}

// Text returns the current live document contents.
func (d *Document) Text() string {
	return d.text.text()
}

func (d *Document) nextSeq(origin uint64) uint64 {
	return uint64(len(d.log[origin])) + 1
}

func (d *Document) record(o op) {
	d.log[o.origin] = append(d.log[o.origin], o)
}

// seenOp reports whether an op with this origin+seq has already been recorded,
// so ApplyUpdate can skip it instead of growing the log on retransmission.
func (d *Document) seenOp(origin, seq uint64) bool {
	for _, o := range d.log[origin] {
		if o.seq == seq {
			return true
		}
	}
	return false
}

// InsertLocal applies a locally-originated insert, assigning it the next
// sequence number for origin, and returns the op so the caller can fold it
// into an outgoing update immediately rather than waiting on a resync.
func (d *Document) InsertLocal(origin uint64, after NodeKey, ch rune) op {
	o := op{kind: opInsert, origin: origin, seq: d.nextSeq(origin), after: after, ch: ch}
	d.text.insert(o.id(), o.after, o.ch)
	d.record(o)
	return o
}

// DeleteLocal applies a locally-originated delete of target.
func (d *Document) DeleteLocal(origin uint64, target NodeKey) op {
	o := op{kind: opDelete, origin: origin, seq: d.nextSeq(origin), target: target}
	d.text.delete(o.target)
	d.record(o)
	return o
}

// StateVector encodes the highest sequence number seen per origin.
func (d *Document) StateVector() []byte {
	sv := make(map[uint64]uint64, len(d.log))
	for origin, ops := range d.log {
		if len(ops) > 0 {
			sv[origin] = ops[len(ops)-1].seq
		}
	}
	return encodeStateVector(sv)
}

// EncodeStateAsUpdate returns every op this document holds that the peer
// identified by peerSV (an encoded state vector) has not yet seen.
func (d *Document) EncodeStateAsUpdate(peerSV []byte) ([]byte, error) {
	theirs, err := decodeStateVector(peerSV)
	if err != nil {
		return nil, err
	}

	var missing []op
	origins := make([]uint64, 0, len(d.log))
	for origin := range d.log {
		origins = append(origins, origin)
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })

	for _, origin := range origins {
		known := theirs[origin]
		for _, o := range d.log[origin] {
			if o.seq > known {
				missing = append(missing, o)
			}
		}
	}
	return encodeUpdate(missing), nil
}

// EncodeFullState returns every op ever accepted, used for the on-destroy
// snapshot handed to persistence.
func (d *Document) EncodeFullState() []byte {
	return d.EncodeFullUpdate()
}

// EncodeFullUpdate flattens the op log into a single update, origin order
// then log order, so replay against an empty document reconstructs this
// document deterministically.
func (d *Document) EncodeFullUpdate() []byte {
	origins := make([]uint64, 0, len(d.log))
	for origin := range d.log {
		origins = append(origins, origin)
	}
	sort.Slice(origins, func(i, j int) bool { return origins[i] < origins[j] })

	var all []op
	for _, origin := range origins {
		all = append(all, d.log[origin]...)
	}
	return encodeUpdate(all)
}

// ApplyUpdate merges a remote update into this document. Already-seen ops
// (by origin+seq) are skipped, making the merge idempotent under
// retransmission; a delete with a new origin+seq whose target is already
// tombstoned is still recorded.
func (d *Document) ApplyUpdate(update []byte) error {
	ops, err := decodeUpdate(update)
	if err != nil {
		return err
	}
	for _, o := range ops {
		if d.seenOp(o.origin, o.seq) {
			continue
		}
		switch o.kind {
		case opInsert:
			if d.text.insert(o.id(), o.after, o.ch) {
				d.record(o)
			}
		case opDelete:
			d.text.delete(o.target)
			d.record(o)
		}
	}
	return nil
}
