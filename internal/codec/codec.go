// Package codec implements the fixed, frozen binary encoding shared by
// the wire protocol and the on-disk node bodies: little-endian
// fixed-width integers, u64-length-prefixed byte/text sequences, and
// u32-discriminant tagged variants. Discriminant values must never be
// reordered — see spec §4.2.
package codec

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/adred-codev/kanband/internal/identity"
	"github.com/adred-codev/kanband/internal/idspace"
	"github.com/adred-codev/kanband/internal/kerr"
	"github.com/adred-codev/kanband/internal/node"
)

// ErrTruncated is returned when a Reader runs out of bytes mid-value.
var ErrTruncated = errors.New("codec: truncated input")

// Writer accumulates a byte-oriented encoding.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// PutBytes writes a u64 length prefix followed by raw bytes.
func (w *Writer) PutBytes(b []byte) {
	w.PutU64(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) PutString(s string) { w.PutBytes([]byte(s)) }

func (w *Writer) PutTime(t time.Time) { w.PutU64(uint64(t.UnixNano())) }

// Reader consumes a byte-oriented encoding produced by Writer.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) need(n int) error {
	if r.off+n > len(r.buf) {
		return ErrTruncated
	}
	return nil
}

func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *Reader) Bool() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	v := r.buf[r.off] != 0
	r.off++
	return v, nil
}

func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return out, nil
}

func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) Time() (time.Time, error) {
	n, err := r.U64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(n)).UTC(), nil
}

// Remaining reports whether unread bytes are left in r.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// --- Pass ---

func EncodePass(w *Writer, p identity.Pass) {
	w.PutU32(uint32(p.Kind))
	w.PutString(p.Text)
}

func DecodePass(r *Reader) (identity.Pass, error) {
	kind, err := r.U32()
	if err != nil {
		return identity.Pass{}, err
	}
	text, err := r.String()
	if err != nil {
		return identity.Pass{}, err
	}
	return identity.Pass{Kind: identity.PassKind(kind), Text: text}, nil
}

// --- Author ---

func EncodeAuthor(w *Writer, a identity.Author) {
	w.PutString(a.Name)
	EncodePass(w, a.Pass)
}

func DecodeAuthor(r *Reader) (identity.Author, error) {
	name, err := r.String()
	if err != nil {
		return identity.Author{}, err
	}
	pass, err := DecodePass(r)
	if err != nil {
		return identity.Author{}, err
	}
	return identity.Author{Name: name, Pass: pass}, nil
}

// --- Node ---

func EncodeNode(w *Writer, n node.Node) {
	w.PutBytes(n.ID)
	w.PutString(n.Title)
	EncodeAuthor(w, n.Author)
	w.PutString(n.Content)
	w.PutTime(n.PublishTime)
	w.PutTime(n.LastReply)
	w.PutBool(n.Edited)
}

func DecodeNode(r *Reader) (node.Node, error) {
	var n node.Node
	id, err := r.Bytes()
	if err != nil {
		return n, err
	}
	n.ID = idspace.ID(id)
	if n.Title, err = r.String(); err != nil {
		return n, err
	}
	if n.Author, err = DecodeAuthor(r); err != nil {
		return n, err
	}
	if n.Content, err = r.String(); err != nil {
		return n, err
	}
	if n.PublishTime, err = r.Time(); err != nil {
		return n, err
	}
	if n.LastReply, err = r.Time(); err != nil {
		return n, err
	}
	if n.Edited, err = r.Bool(); err != nil {
		return n, err
	}
	return n, nil
}

// MarshalNode encodes n standalone, used for on-disk node bodies.
func MarshalNode(n node.Node) []byte {
	w := NewWriter()
	EncodeNode(w, n)
	return w.Bytes()
}

// UnmarshalNode decodes a standalone node body.
func UnmarshalNode(b []byte) (node.Node, error) {
	return DecodeNode(NewReader(b))
}

// --- ListTarget ---

type ListTargetKind uint32

const (
	ListTargetRoot ListTargetKind = 0
	ListTargetNode ListTargetKind = 1
)

type ListTarget struct {
	Kind ListTargetKind
	ID   idspace.ID // valid when Kind == ListTargetNode
}

func encodeListTarget(w *Writer, lt ListTarget) {
	w.PutU32(uint32(lt.Kind))
	if lt.Kind == ListTargetNode {
		w.PutBytes(lt.ID)
	}
}

func decodeListTarget(r *Reader) (ListTarget, error) {
	kind, err := r.U32()
	if err != nil {
		return ListTarget{}, err
	}
	lt := ListTarget{Kind: ListTargetKind(kind)}
	if lt.Kind == ListTargetNode {
		id, err := r.Bytes()
		if err != nil {
			return ListTarget{}, err
		}
		lt.ID = idspace.ID(id)
	}
	return lt, nil
}

// --- Action ---

type ActionKind uint32

const (
	ActionDelete ActionKind = 0
	ActionList   ActionKind = 1
	ActionUpdate ActionKind = 2
	ActionPost   ActionKind = 3
)

// Action is a client request. Exactly one of Node/ListTarget is
// populated, selected by Kind.
type Action struct {
	Kind       ActionKind
	Node       node.Node
	ListTarget ListTarget
}

func EncodeAction(a Action) []byte {
	w := NewWriter()
	w.PutU32(uint32(a.Kind))
	switch a.Kind {
	case ActionDelete, ActionUpdate, ActionPost:
		EncodeNode(w, a.Node)
	case ActionList:
		encodeListTarget(w, a.ListTarget)
	}
	return w.Bytes()
}

func DecodeAction(b []byte) (Action, error) {
	r := NewReader(b)
	kind, err := r.U32()
	if err != nil {
		return Action{}, err
	}
	a := Action{Kind: ActionKind(kind)}
	switch a.Kind {
	case ActionDelete, ActionUpdate, ActionPost:
		if a.Node, err = DecodeNode(r); err != nil {
			return Action{}, err
		}
	case ActionList:
		if a.ListTarget, err = decodeListTarget(r); err != nil {
			return Action{}, err
		}
	default:
		return Action{}, ErrTruncated
	}
	return a, nil
}

// --- Response ---

type ResponseKind uint32

const (
	ResponsePost   ResponseKind = 0
	ResponseUpdate ResponseKind = 1
	ResponseDelete ResponseKind = 2
	ResponseList   ResponseKind = 3
	ResponseErr    ResponseKind = 4
)

// Response is a server reply. Exactly one of Node/List/Err is
// populated, selected by Kind.
type Response struct {
	Kind ResponseKind
	Node node.Node
	List []node.Node
	Err  kerr.Kind
}

func EncodeResponse(resp Response) []byte {
	w := NewWriter()
	w.PutU32(uint32(resp.Kind))
	switch resp.Kind {
	case ResponsePost, ResponseUpdate, ResponseDelete:
		EncodeNode(w, resp.Node)
	case ResponseList:
		w.PutU64(uint64(len(resp.List)))
		for _, n := range resp.List {
			EncodeNode(w, n)
		}
	case ResponseErr:
		w.PutU32(resp.Err.Code())
	}
	return w.Bytes()
}

func DecodeResponse(b []byte) (Response, error) {
	r := NewReader(b)
	kind, err := r.U32()
	if err != nil {
		return Response{}, err
	}
	resp := Response{Kind: ResponseKind(kind)}
	switch resp.Kind {
	case ResponsePost, ResponseUpdate, ResponseDelete:
		if resp.Node, err = DecodeNode(r); err != nil {
			return Response{}, err
		}
	case ResponseList:
		n, err := r.U64()
		if err != nil {
			return Response{}, err
		}
		resp.List = make([]node.Node, 0, n)
		for i := uint64(0); i < n; i++ {
			nd, err := DecodeNode(r)
			if err != nil {
				return Response{}, err
			}
			resp.List = append(resp.List, nd)
		}
	case ResponseErr:
		code, err := r.U32()
		if err != nil {
			return Response{}, err
		}
		resp.Err = kerr.FromCode(code)
	default:
		return Response{}, ErrTruncated
	}
	return resp, nil
}
