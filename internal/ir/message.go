package ir

import "fmt"

// PayloadKind tags the outer envelope of a serialized message.
type PayloadKind uint8

const (
	// PayloadMessage marks a peer-to-peer operation message.
	PayloadMessage PayloadKind = 1
	// PayloadResponse marks a reply to a message.
	PayloadResponse PayloadKind = 2
)

// MsgKind enumerates the operations a peer understands.
// The set is closed; PolicyFor switches over every member.
type MsgKind uint8

const (
	// MsgCmd runs an operation on registered values.
	MsgCmd MsgKind = iota + 1
	// MsgObj announces an object to the receiver. It carries no operation.
	MsgObj
	// MsgObjReq asks for the value behind an identifier.
	MsgObjReq
	// MsgObjDel releases an identifier.
	MsgObjDel
	// MsgIsNone asks whether the value behind an identifier is empty.
	MsgIsNone
	// MsgGetShape asks for the shape of the value behind an identifier.
	MsgGetShape
)

// String returns the wire-independent name of the kind.
func (k MsgKind) String() string {
	switch k {
	case MsgCmd:
		return "cmd"
	case MsgObj:
		return "obj"
	case MsgObjReq:
		return "obj_req"
	case MsgObjDel:
		return "obj_del"
	case MsgIsNone:
		return "is_none"
	case MsgGetShape:
		return "get_shape"
	default:
		return fmt.Sprintf("msg_kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a member of the enumeration.
func (k MsgKind) Valid() bool {
	return k >= MsgCmd && k <= MsgGetShape
}

// Policy states how a recording peer treats a message kind.
type Policy struct {
	// Record appends the message to the recorded plan.
	Record bool
	// Eager forces everything recorded so far to run so the message can be
	// answered with a real value.
	Eager bool
}

// PolicyFor returns the recording policy of kind. Unknown kinds are
// reported as an error rather than silently recorded.
func PolicyFor(kind MsgKind) (Policy, error) {
	switch kind {
	case MsgObj:
		return Policy{Record: false, Eager: false}, nil
	case MsgCmd, MsgObjDel:
		return Policy{Record: true, Eager: false}, nil
	case MsgObjReq, MsgIsNone, MsgGetShape:
		return Policy{Record: true, Eager: true}, nil
	default:
		return Policy{}, fmt.Errorf("unknown message kind %d", uint8(kind))
	}
}

// Message is one decoded operation sent to a peer.
type Message struct {
	Payload  PayloadKind
	Kind     MsgKind
	Contents IRArray
}

// ReplaceIDs returns a copy of m with the identifier rewriter applied to its
// contents. m is left untouched.
func (m Message) ReplaceIDs(changeID, toID ID, fromPeer, toPeer PeerID) Message {
	return Message{
		Payload:  m.Payload,
		Kind:     m.Kind,
		Contents: ReplaceIDs(m.Contents, changeID, toID, fromPeer, toPeer).(IRArray),
	}
}

// ReplaceIDMap returns a copy of m with every substitution in ids applied
// to its contents in a single pass.
func (m Message) ReplaceIDMap(ids map[ID]ID, fromPeer, toPeer PeerID) Message {
	return Message{
		Payload:  m.Payload,
		Kind:     m.Kind,
		Contents: ReplaceIDMap(m.Contents, ids, fromPeer, toPeer).(IRArray),
	}
}

// Value returns the envelope as a nested IR value:
// [payload, [kind, contents]].
func (m Message) Value() IRArray {
	return IRArray{
		IRInt(m.Payload),
		IRArray{IRInt(m.Kind), m.Contents},
	}
}

// MessageFromValue reverses Message.Value.
func MessageFromValue(v IRValue) (Message, error) {
	outer, ok := v.(IRArray)
	if !ok || len(outer) != 2 {
		return Message{}, fmt.Errorf("message envelope: expected 2-element array, got %T", v)
	}
	payload, ok := outer[0].(IRInt)
	if !ok {
		return Message{}, fmt.Errorf("message envelope: payload kind is %T", outer[0])
	}
	inner, ok := outer[1].(IRArray)
	if !ok || len(inner) != 2 {
		return Message{}, fmt.Errorf("message envelope: expected (kind, contents)")
	}
	kind, ok := inner[0].(IRInt)
	if !ok {
		return Message{}, fmt.Errorf("message envelope: message kind is %T", inner[0])
	}
	contents, ok := inner[1].(IRArray)
	if !ok {
		return Message{}, fmt.Errorf("message envelope: contents is %T", inner[1])
	}
	if !MsgKind(kind).Valid() {
		return Message{}, fmt.Errorf("message envelope: unknown message kind %d", kind)
	}
	return Message{Payload: PayloadKind(payload), Kind: MsgKind(kind), Contents: contents}, nil
}

// Ref is an operand living at a peer: [id, peer].
type Ref struct {
	ID   ID
	Peer PeerID
}

// Value encodes the ref for message contents.
func (r Ref) Value() IRArray {
	return IRArray{IRID(r.ID), IRPeer(r.Peer)}
}

// RefFromValue decodes a ref; ok is false when v is not a ref.
func RefFromValue(v IRValue) (Ref, bool) {
	arr, isArr := v.(IRArray)
	if !isArr || len(arr) != 2 {
		return Ref{}, false
	}
	id, okID := arr[0].(IRID)
	peer, okPeer := arr[1].(IRPeer)
	if !okID || !okPeer {
		return Ref{}, false
	}
	return Ref{ID: ID(id), Peer: PeerID(peer)}, true
}

// Command is the structured form of MsgCmd contents:
// [op, self, args, kwargs, return_ids].
type Command struct {
	Op        string
	Self      Ref
	Args      IRArray
	Kwargs    IRObject
	ReturnIDs []ID
}

// Message wraps the command in a MsgCmd envelope.
func (c Command) Message() Message {
	kwargs := c.Kwargs
	if kwargs == nil {
		kwargs = IRObject{}
	}
	args := c.Args
	if args == nil {
		args = IRArray{}
	}
	return Message{
		Payload: PayloadMessage,
		Kind:    MsgCmd,
		Contents: IRArray{
			IRString(c.Op),
			c.Self.Value(),
			args,
			kwargs,
			IDs(c.ReturnIDs...),
		},
	}
}

// CommandFromMessage parses MsgCmd contents.
func CommandFromMessage(m Message) (Command, error) {
	if m.Kind != MsgCmd {
		return Command{}, fmt.Errorf("command: message kind is %s", m.Kind)
	}
	if len(m.Contents) != 5 {
		return Command{}, fmt.Errorf("command: expected 5 fields, got %d", len(m.Contents))
	}
	op, ok := m.Contents[0].(IRString)
	if !ok {
		return Command{}, fmt.Errorf("command: op is %T", m.Contents[0])
	}
	self, ok := RefFromValue(m.Contents[1])
	if !ok {
		return Command{}, fmt.Errorf("command %s: self is not a ref", op)
	}
	args, ok := m.Contents[2].(IRArray)
	if !ok {
		return Command{}, fmt.Errorf("command %s: args is %T", op, m.Contents[2])
	}
	kwargs, ok := m.Contents[3].(IRObject)
	if !ok {
		return Command{}, fmt.Errorf("command %s: kwargs is %T", op, m.Contents[3])
	}
	returnIDs, err := ToIDs(m.Contents[4])
	if err != nil {
		return Command{}, fmt.Errorf("command %s: return ids: %w", op, err)
	}
	return Command{Op: string(op), Self: self, Args: args, Kwargs: kwargs, ReturnIDs: returnIDs}, nil
}

// Query builds a single-ref message of the given kind (obj_req, obj_del,
// is_none, get_shape).
func Query(kind MsgKind, ref Ref) Message {
	return Message{Payload: PayloadMessage, Kind: kind, Contents: IRArray{ref.Value()}}
}

// QueryRef extracts the ref of a single-ref message.
func QueryRef(m Message) (Ref, error) {
	if len(m.Contents) != 1 {
		return Ref{}, fmt.Errorf("%s: expected 1 field, got %d", m.Kind, len(m.Contents))
	}
	ref, ok := RefFromValue(m.Contents[0])
	if !ok {
		return Ref{}, fmt.Errorf("%s: field is not a ref", m.Kind)
	}
	return ref, nil
}

// Announce builds a MsgObj message: [id, object-type, payload].
func Announce(id ID, objectType string, payload IRValue) Message {
	return Message{
		Payload:  PayloadMessage,
		Kind:     MsgObj,
		Contents: IRArray{IRID(id), IRString(objectType), payload},
	}
}

// AnnounceFields extracts the fields of a MsgObj message.
func AnnounceFields(m Message) (ID, string, IRValue, error) {
	if m.Kind != MsgObj || len(m.Contents) != 3 {
		return 0, "", nil, fmt.Errorf("obj: malformed announce")
	}
	id, ok := m.Contents[0].(IRID)
	if !ok {
		return 0, "", nil, fmt.Errorf("obj: id is %T", m.Contents[0])
	}
	typ, ok := m.Contents[1].(IRString)
	if !ok {
		return 0, "", nil, fmt.Errorf("obj: type is %T", m.Contents[1])
	}
	return ID(id), string(typ), m.Contents[2], nil
}

// MarshalJSON writes the canonical envelope form.
func (m Message) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(m.Value())
}

// UnmarshalJSON reads the canonical envelope form.
func (m *Message) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	decoded, err := MessageFromValue(v)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}
