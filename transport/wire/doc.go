// Package wire implements the fieldsync binary protocol.
//
// Every binary frame starts with a one-byte tag followed by fixed-width
// little-endian int32 fields. There is no length prefix: the record layout
// and the count of any repeated group fully determine the frame length.
//
// Message Layouts:
//
//	0 Close          (empty)
//	1 FieldParams    size, startX, startY, count, count×(x, y, w, h)
//	2 CheckMove      vx, vy
//	3 ResultMove     vx, vy
//	4 EntitiesInfo   count, count×(id, posX, posY, velX, velY)
//	5 ConnectedInfo  count, count×(id, name[64])
//
// Names are UTF-8, padded with spaces to 64 bytes on encode and trimmed on
// decode.
//
// Usage:
//
//	frame := wire.EncodeCheckMove(engine.Vector{X: 3, Y: -1})
//
//	msg, err := wire.Decode(frame)
//	if err != nil {
//		return err
//	}
//	if msg == nil {
//		return nil // unknown tag
//	}
//	switch msg.Tag {
//	case wire.TagResultMove:
//		fmt.Println(msg.Velocity)
//	}
package wire
