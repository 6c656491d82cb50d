package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
)

type encoder struct {
	buf []byte
}

func newEncoder(tag Tag, size int) *encoder {
	buf := make([]byte, 0, 1+size)
	return &encoder{buf: append(buf, byte(tag))}
}

func (e *encoder) putInt32(v int32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v))
}

func (e *encoder) putVector(v engine.Vector) {
	e.putInt32(v.X)
	e.putInt32(v.Y)
}

func (e *encoder) putName(s string) error {
	if len(s) > NameSize {
		return fmt.Errorf("%w: %q", ErrNameTooLong, s)
	}
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, bytes.Repeat([]byte{' '}, NameSize-len(s))...)
	return nil
}

// EncodeClose encodes an empty Close frame
func EncodeClose() []byte {
	return []byte{byte(TagClose)}
}

// EncodeFieldParams encodes the field size, start position and obstacle list
func EncodeFieldParams(p FieldParams) []byte {
	e := newEncoder(TagFieldParams, 4*int32Size+len(p.Obstacles)*obstacleSize)
	e.putInt32(p.Size)
	e.putVector(p.Start)
	e.putInt32(int32(len(p.Obstacles)))
	for _, b := range p.Obstacles {
		e.putInt32(b.X)
		e.putInt32(b.Y)
		e.putInt32(b.W)
		e.putInt32(b.H)
	}
	return e.buf
}

// EncodeCheckMove encodes a client move request
func EncodeCheckMove(v engine.Vector) []byte {
	e := newEncoder(TagCheckMove, vectorPayloadSize)
	e.putVector(v)
	return e.buf
}

// EncodeResultMove encodes the server-corrected velocity
func EncodeResultMove(v engine.Vector) []byte {
	e := newEncoder(TagResultMove, vectorPayloadSize)
	e.putVector(v)
	return e.buf
}

// EncodeEntitiesInfo encodes a world snapshot
func EncodeEntitiesInfo(records []EntityRecord) []byte {
	e := newEncoder(TagEntitiesInfo, int32Size+len(records)*entityRecordSize)
	e.putInt32(int32(len(records)))
	for _, r := range records {
		e.putInt32(r.ID)
		e.putVector(r.Position)
		e.putVector(r.Velocity)
	}
	return e.buf
}

// EncodeConnectedInfo encodes the id and name of every entity
func EncodeConnectedInfo(peers []Peer) ([]byte, error) {
	e := newEncoder(TagConnectedInfo, int32Size+len(peers)*peerRecordSize)
	e.putInt32(int32(len(peers)))
	for _, p := range peers {
		e.putInt32(p.ID)
		if err := e.putName(p.Name); err != nil {
			return nil, err
		}
	}
	return e.buf, nil
}

// Encode encodes a message according to its tag
func Encode(m *Message) ([]byte, error) {
	switch m.Tag {
	case TagClose:
		return EncodeClose(), nil
	case TagFieldParams:
		if m.Field == nil {
			return EncodeFieldParams(FieldParams{}), nil
		}
		return EncodeFieldParams(*m.Field), nil
	case TagCheckMove:
		return EncodeCheckMove(m.Velocity), nil
	case TagResultMove:
		return EncodeResultMove(m.Velocity), nil
	case TagEntitiesInfo:
		return EncodeEntitiesInfo(m.Entities), nil
	case TagConnectedInfo:
		return EncodeConnectedInfo(m.Peers)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, m.Tag)
	}
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) readInt32() (int32, error) {
	if d.remaining() < int32Size {
		return 0, ErrTruncated
	}
	v := int32(binary.LittleEndian.Uint32(d.data[d.off:]))
	d.off += int32Size
	return v, nil
}

func (d *decoder) readVector() (engine.Vector, error) {
	x, err := d.readInt32()
	if err != nil {
		return engine.Vector{}, err
	}
	y, err := d.readInt32()
	if err != nil {
		return engine.Vector{}, err
	}
	return engine.Vector{X: x, Y: y}, nil
}

// readCount reads a record count and checks that the records fit in the frame
func (d *decoder) readCount(recordSize int) (int, error) {
	n, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrNegativeCount
	}
	if int(n) > d.remaining()/recordSize {
		return 0, ErrTruncated
	}
	return int(n), nil
}

func (d *decoder) readName() string {
	raw := d.data[d.off : d.off+NameSize]
	d.off += NameSize
	return strings.TrimRight(string(raw), " \x00")
}

// Decode parses a binary frame. An unknown tag yields a nil message and a
// nil error. Bytes after a complete record are ignored.
//
// Names lose trailing spaces and NULs, since both are padding on the wire: a
// name sent as "ab " decodes as "ab".
func Decode(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	tag := Tag(data[0])
	d := &decoder{data: data, off: 1}

	var (
		msg *Message
		err error
	)
	switch tag {
	case TagClose:
		msg = &Message{Tag: TagClose}
	case TagFieldParams:
		msg, err = d.fieldParams()
	case TagCheckMove, TagResultMove:
		var v engine.Vector
		v, err = d.readVector()
		msg = &Message{Tag: tag, Velocity: v}
	case TagEntitiesInfo:
		msg, err = d.entitiesInfo()
	case TagConnectedInfo:
		msg, err = d.connectedInfo()
	default:
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return msg, nil
}

func (d *decoder) fieldParams() (*Message, error) {
	size, err := d.readInt32()
	if err != nil {
		return nil, err
	}
	start, err := d.readVector()
	if err != nil {
		return nil, err
	}
	n, err := d.readCount(obstacleSize)
	if err != nil {
		return nil, err
	}

	obstacles := make([]engine.Box, n)
	for i := range obstacles {
		// readCount guarantees the bytes are present
		x, _ := d.readInt32()
		y, _ := d.readInt32()
		w, _ := d.readInt32()
		h, _ := d.readInt32()
		obstacles[i] = engine.Box{X: x, Y: y, W: w, H: h}
	}

	return &Message{
		Tag:   TagFieldParams,
		Field: &FieldParams{Size: size, Start: start, Obstacles: obstacles},
	}, nil
}

func (d *decoder) entitiesInfo() (*Message, error) {
	n, err := d.readCount(entityRecordSize)
	if err != nil {
		return nil, err
	}

	records := make([]EntityRecord, n)
	for i := range records {
		id, _ := d.readInt32()
		pos, _ := d.readVector()
		vel, _ := d.readVector()
		records[i] = EntityRecord{ID: id, Position: pos, Velocity: vel}
	}
	return &Message{Tag: TagEntitiesInfo, Entities: records}, nil
}

func (d *decoder) connectedInfo() (*Message, error) {
	n, err := d.readCount(peerRecordSize)
	if err != nil {
		return nil, err
	}

	peers := make([]Peer, n)
	for i := range peers {
		id, _ := d.readInt32()
		peers[i] = Peer{ID: id, Name: d.readName()}
	}
	return &Message{Tag: TagConnectedInfo, Peers: peers}, nil
}
