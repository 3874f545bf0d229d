package ir

// ReplaceIDs walks v and substitutes identifiers and peer identities:
//   - an IRID equal to changeID becomes toID
//   - an IRPeer equal to fromPeer becomes toPeer
//   - an IRArray is rewritten element by element, recursively
//   - every other value passes through unchanged
//
// The result has the same shape as v. v is never mutated; arrays are always
// rebuilt so the caller can swap the result in wholesale.
func ReplaceIDs(v IRValue, changeID, toID ID, fromPeer, toPeer PeerID) IRValue {
	switch val := v.(type) {
	case IRID:
		if ID(val) == changeID {
			return IRID(toID)
		}
		return val
	case IRPeer:
		if PeerID(val) == fromPeer {
			return IRPeer(toPeer)
		}
		return val
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = ReplaceIDs(elem, changeID, toID, fromPeer, toPeer)
		}
		return out
	default:
		return v
	}
}

// ReplacePeers rewrites peer identities only; the identifier channel is
// driven with the NoID sentinel on both sides.
func ReplacePeers(v IRValue, fromPeer, toPeer PeerID) IRValue {
	return ReplaceIDs(v, NoID, NoID, fromPeer, toPeer)
}

// ReplaceIDMap applies several identifier substitutions in one walk. Each
// IRID that is a key of ids is replaced by its value exactly once, so a new
// identifier that equals another entry's old identifier is left alone.
// Peers are rewritten as in ReplaceIDs.
func ReplaceIDMap(v IRValue, ids map[ID]ID, fromPeer, toPeer PeerID) IRValue {
	switch val := v.(type) {
	case IRID:
		if to, ok := ids[ID(val)]; ok {
			return IRID(to)
		}
		return val
	case IRPeer:
		if PeerID(val) == fromPeer {
			return IRPeer(toPeer)
		}
		return val
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = ReplaceIDMap(elem, ids, fromPeer, toPeer)
		}
		return out
	default:
		return v
	}
}
