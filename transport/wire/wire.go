package wire

import (
	"errors"
	"strconv"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
)

// Tag identifies the layout of a binary frame
type Tag uint8

const (
	TagClose         Tag = 0
	TagFieldParams   Tag = 1
	TagCheckMove     Tag = 2
	TagResultMove    Tag = 3
	TagEntitiesInfo  Tag = 4
	TagConnectedInfo Tag = 5
)

// NameSize is the fixed width of a name field in ConnectedInfo
const NameSize = engine.MaxNameLength

const (
	int32Size         = 4
	obstacleSize      = 4 * int32Size
	entityRecordSize  = 5 * int32Size
	peerRecordSize    = int32Size + NameSize
	vectorPayloadSize = 2 * int32Size
)

var (
	ErrEmptyFrame    = errors.New("empty frame")
	ErrTruncated     = errors.New("frame truncated")
	ErrNegativeCount = errors.New("negative record count")
	ErrNameTooLong   = errors.New("name exceeds 64 bytes")
	ErrUnknownTag    = errors.New("unknown message tag")
)

func (t Tag) String() string {
	switch t {
	case TagClose:
		return "Close"
	case TagFieldParams:
		return "FieldParams"
	case TagCheckMove:
		return "CheckMove"
	case TagResultMove:
		return "ResultMove"
	case TagEntitiesInfo:
		return "EntitiesInfo"
	case TagConnectedInfo:
		return "ConnectedInfo"
	default:
		return "Tag(" + strconv.Itoa(int(t)) + ")"
	}
}

// FieldParams describes the field sent to a client after the handshake
type FieldParams struct {
	Size      int32
	Start     engine.Vector
	Obstacles []engine.Box
}

// EntityRecord is one row of an EntitiesInfo frame
type EntityRecord struct {
	ID       int32
	Position engine.Vector
	Velocity engine.Vector
}

// Peer is one row of a ConnectedInfo frame
type Peer struct {
	ID   int32
	Name string
}

// Message is a decoded frame. Tag selects which payload field is set:
//
//	TagFieldParams              Field
//	TagCheckMove, TagResultMove Velocity
//	TagEntitiesInfo             Entities
//	TagConnectedInfo            Peers
type Message struct {
	Tag      Tag
	Field    *FieldParams
	Velocity engine.Vector
	Entities []EntityRecord
	Peers    []Peer
}

// EntityRecords converts entity snapshots to EntitiesInfo rows, keeping order
func EntityRecords(states []engine.EntityState) []EntityRecord {
	records := make([]EntityRecord, len(states))
	for i, s := range states {
		records[i] = EntityRecord{ID: s.ID, Position: s.Position, Velocity: s.Velocity}
	}
	return records
}

// Peers converts entity snapshots to ConnectedInfo rows, keeping order
func Peers(states []engine.EntityState) []Peer {
	peers := make([]Peer, len(states))
	for i, s := range states {
		peers[i] = Peer{ID: s.ID, Name: s.Name}
	}
	return peers
}
