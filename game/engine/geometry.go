package engine

import (
	"fmt"
	"strconv"
)

// Add returns the componentwise sum of two vectors
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

// IsZero reports whether both components are zero
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

func (v Vector) String() string {
	return fmt.Sprintf("(%d,%d)", v.X, v.Y)
}

// Contains checks whether a point lies inside the box.
// The left and right edges are inclusive, the top edge is exclusive.
func (b Box) Contains(p Vector) bool {
	inX := p.X >= b.X && p.X <= b.X+b.W
	inY := p.Y > b.Y && p.Y <= b.Y+b.H
	return inX && inY
}

// CheckCollision tests a step of vel from pos against the box.
// The horizontal step is tried first; at most one axis is reported.
func (b Box) CheckCollision(pos, vel Vector) (hitX, hitY bool) {
	if b.Contains(pos.Add(Vector{X: vel.X})) {
		return true, false
	}
	if b.Contains(pos.Add(Vector{Y: vel.Y})) {
		return false, true
	}
	return false, false
}

// NewHuman creates a human-controlled entity. Its position is assigned by Field.AddEntity.
func NewHuman(id int32) *Entity {
	return &Entity{
		ID:   id,
		Name: humanNamePrefix + strconv.FormatInt(int64(id), 10),
	}
}

// NewBot creates a bot entity at the given position and velocity
func NewBot(id int32, position, velocity Vector) *Entity {
	return &Entity{
		ID:       id,
		Name:     botNamePrefix + strconv.FormatInt(int64(id), 10),
		Position: position,
		Velocity: velocity,
		IsBot:    true,
	}
}

// State returns a copy of the entity's current state
func (e *Entity) State() EntityState {
	return EntityState{
		ID:       e.ID,
		Name:     e.Name,
		Position: e.Position,
		Velocity: e.Velocity,
		IsBot:    e.IsBot,
	}
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
