package engine

import (
	"errors"
	"math/rand/v2"
	"sync"
)

var (
	ErrNilEntity       = errors.New("entity is nil")
	ErrDuplicateEntity = errors.New("entity id already registered")
)

// Field is the shared world: a square of fixed size with static obstacles
// and a registry of moving entities.
//
// The obstacle list never changes after construction and is read without
// locking. The entity registry is guarded by a single mutex; UpdateEntity
// itself does not lock, so callers go through Move or Each.
type Field struct {
	size      int32
	obstacles []Box

	mu       sync.Mutex
	entities []*Entity
	rng      *rand.Rand
}

// NewField creates a field with the given size and obstacles.
// rng is used for human spawn positions; nil selects a randomly seeded source.
func NewField(size int32, obstacles []Box, rng *rand.Rand) *Field {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	boxes := make([]Box, len(obstacles))
	copy(boxes, obstacles)

	return &Field{
		size:      size,
		obstacles: boxes,
		entities:  make([]*Entity, 0),
		rng:       rng,
	}
}

// GenerateObstacles creates count random boxes. Corners fall in [0,size)
// and dimensions in [minSize,maxSize).
func GenerateObstacles(rng *rand.Rand, size int32, count int, minSize, maxSize int32) []Box {
	boxes := make([]Box, 0, count)
	span := maxSize - minSize
	for i := 0; i < count; i++ {
		b := Box{
			X: rng.Int32N(size),
			Y: rng.Int32N(size),
			W: minSize,
			H: minSize,
		}
		if span > 0 {
			b.W += rng.Int32N(span)
			b.H += rng.Int32N(span)
		}
		boxes = append(boxes, b)
	}
	return boxes
}

// Size returns the field edge length
func (f *Field) Size() int32 {
	return f.size
}

// Obstacles returns a copy of the obstacle list in generation order
func (f *Field) Obstacles() []Box {
	out := make([]Box, len(f.obstacles))
	copy(out, f.obstacles)
	return out
}

// AddEntity registers an entity. Human entities get a random position.
func (f *Field) AddEntity(e *Entity) error {
	if e == nil {
		return ErrNilEntity
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.entities {
		if existing.ID == e.ID {
			return ErrDuplicateEntity
		}
	}

	if !e.IsBot {
		e.Position = Vector{X: f.rng.Int32N(f.size), Y: f.rng.Int32N(f.size)}
	}

	f.entities = append(f.entities, e)
	return nil
}

// RemoveEntity unregisters an entity, reporting whether it was present
func (f *Field) RemoveEntity(e *Entity) bool {
	if e == nil {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, existing := range f.entities {
		if existing == e {
			f.entities = append(f.entities[:i], f.entities[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateEntity advances an entity by one physics step.
//
// Colliding axes have their velocity negated, then the entity moves by the
// resulting velocity. The move is unconditional, so an entity may sit one
// step inside a wall or obstacle before bouncing out on the next step.
func (f *Field) UpdateEntity(e *Entity) {
	target := e.Position.Add(e.Velocity)

	collisionX := target.X < 0 || target.X >= f.size
	collisionY := target.Y < 0 || target.Y >= f.size

	if !collisionX && !collisionY {
		for _, box := range f.obstacles {
			if abs32(target.X-box.X) > box.W {
				continue
			}
			hitX, hitY := box.CheckCollision(e.Position, e.Velocity)
			if hitX || hitY {
				collisionX, collisionY = hitX, hitY
				break
			}
		}
	}

	if collisionX {
		e.Velocity.X = -e.Velocity.X
	}
	if collisionY {
		e.Velocity.Y = -e.Velocity.Y
	}

	e.Position = e.Position.Add(e.Velocity)
}

// MaxStep is the largest velocity component wall reflection can contain:
// an entity bounced off a wall by a larger step lands outside the far side.
func (f *Field) MaxStep() int32 {
	return (f.size - 1) / 2
}

// ClampVelocity limits each component of v to [-MaxStep, MaxStep]
func (f *Field) ClampVelocity(v Vector) Vector {
	limit := f.MaxStep()
	return Vector{X: clamp32(v.X, limit), Y: clamp32(v.Y, limit)}
}

func clamp32(v, limit int32) int32 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

func clampToField(v, size int32) int32 {
	if v < 0 {
		return 0
	}
	if v >= size {
		return size - 1
	}
	return v
}

// Move clamps the requested velocity, sets it and applies one update under
// the registry lock. The resulting position is kept inside the field. It
// returns the corrected velocity.
func (f *Field) Move(e *Entity, velocity Vector) Vector {
	f.mu.Lock()
	defer f.mu.Unlock()

	e.Velocity = f.ClampVelocity(velocity)
	f.UpdateEntity(e)

	// an obstacle bounce close to a wall can carry the entity past it
	e.Position = Vector{X: clampToField(e.Position.X, f.size), Y: clampToField(e.Position.Y, f.size)}
	return e.Velocity
}

// Each calls fn for every registered entity in registration order while
// holding the registry lock. fn must not call back into locking Field methods.
func (f *Field) Each(fn func(e *Entity)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range f.entities {
		fn(e)
	}
}

// Snapshot returns copies of all registered entities in registration order
func (f *Field) Snapshot() []EntityState {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]EntityState, 0, len(f.entities))
	for _, e := range f.entities {
		result = append(result, e.State())
	}
	return result
}

// Lookup returns a copy of the entity with the given id
func (f *Field) Lookup(id int32) (EntityState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range f.entities {
		if e.ID == id {
			return e.State(), true
		}
	}
	return EntityState{}, false
}

// Len returns the number of registered entities
func (f *Field) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities)
}
