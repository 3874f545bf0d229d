package ir

// PlanRecord is the transferable and persistable form of a traced plan.
type PlanRecord struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Owner     PeerID    `json:"owner"`
	ArgIDs    []ID      `json:"arg_ids"`
	ResultIDs []ID      `json:"result_ids"`
	Messages  []Message `json:"messages"`
}

// Value encodes the record as an IR object, the payload of a MsgObj announce.
func (r PlanRecord) Value() IRObject {
	msgs := make(IRArray, len(r.Messages))
	for i, m := range r.Messages {
		msgs[i] = m.Value()
	}
	return IRObject{
		"id":         IRID(r.ID),
		"name":       IRString(r.Name),
		"owner":      IRPeer(r.Owner),
		"arg_ids":    IDs(r.ArgIDs...),
		"result_ids": IDs(r.ResultIDs...),
		"messages":   msgs,
	}
}

// PlanRecordFromValue reverses PlanRecord.Value.
func PlanRecordFromValue(v IRValue) (PlanRecord, error) {
	obj, ok := v.(IRObject)
	if !ok {
		return PlanRecord{}, &ValidationError{Field: "plan", Message: "expected object"}
	}
	var r PlanRecord
	id, ok := obj["id"].(IRID)
	if !ok {
		return PlanRecord{}, &ValidationError{Field: "plan.id", Message: "expected id"}
	}
	r.ID = ID(id)
	name, _ := obj["name"].(IRString)
	r.Name = string(name)
	owner, _ := obj["owner"].(IRPeer)
	r.Owner = PeerID(owner)

	var err error
	if r.ArgIDs, err = ToIDs(obj["arg_ids"]); err != nil {
		return PlanRecord{}, &ValidationError{Field: "plan.arg_ids", Message: err.Error()}
	}
	if r.ResultIDs, err = ToIDs(obj["result_ids"]); err != nil {
		return PlanRecord{}, &ValidationError{Field: "plan.result_ids", Message: err.Error()}
	}
	msgs, ok := obj["messages"].(IRArray)
	if !ok {
		return PlanRecord{}, &ValidationError{Field: "plan.messages", Message: "expected array"}
	}
	r.Messages = make([]Message, len(msgs))
	for i, mv := range msgs {
		m, err := MessageFromValue(mv)
		if err != nil {
			return PlanRecord{}, &ValidationError{Field: "plan.messages", Message: err.Error()}
		}
		r.Messages[i] = m
	}
	return r, nil
}

// DispatchRecord is one message applied by a peer, in dispatch order.
// Seq is a logical clock, never wall time.
type DispatchRecord struct {
	Seq     int64   `json:"seq"`
	Peer    PeerID  `json:"peer"`
	Kind    MsgKind `json:"kind"`
	Digest  string  `json:"digest"`
	Message Message `json:"-"`
}

// StoredPlan is a plan record as read back from the store.
type StoredPlan struct {
	Seq    int64      `json:"seq"`
	Digest string     `json:"digest"`
	Record PlanRecord `json:"record"`
}
