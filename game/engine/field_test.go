package engine

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func createTestField(obstacles ...Box) *Field {
	return NewField(DefaultFieldSize, obstacles, newTestRand())
}

func TestGenerateObstacles(t *testing.T) {
	rng := newTestRand()
	boxes := GenerateObstacles(rng, DefaultFieldSize, DefaultObstacleCount, DefaultObstacleMinSize, DefaultObstacleMaxSize)

	if len(boxes) != DefaultObstacleCount {
		t.Fatalf("Expected %d obstacles, got %d", DefaultObstacleCount, len(boxes))
	}

	for i, b := range boxes {
		if b.X < 0 || b.X >= DefaultFieldSize || b.Y < 0 || b.Y >= DefaultFieldSize {
			t.Errorf("Obstacle %d corner out of range: %+v", i, b)
		}
		if b.W < DefaultObstacleMinSize || b.W >= DefaultObstacleMaxSize {
			t.Errorf("Obstacle %d width out of range: %d", i, b.W)
		}
		if b.H < DefaultObstacleMinSize || b.H >= DefaultObstacleMaxSize {
			t.Errorf("Obstacle %d height out of range: %d", i, b.H)
		}
	}

	t.Run("fixed size when min equals max", func(t *testing.T) {
		boxes := GenerateObstacles(newTestRand(), 100, 3, 10, 10)
		for _, b := range boxes {
			if b.W != 10 || b.H != 10 {
				t.Errorf("Expected 10x10 box, got %+v", b)
			}
		}
	})
}

func TestField_ObstaclesAreImmutable(t *testing.T) {
	source := []Box{{X: 1, Y: 2, W: 3, H: 4}}
	field := createTestField(source...)

	source[0].X = 999
	got := field.Obstacles()
	if got[0].X != 1 {
		t.Errorf("Field obstacles changed through constructor argument: %+v", got[0])
	}

	got[0].Y = 999
	if field.Obstacles()[0].Y != 2 {
		t.Error("Field obstacles changed through returned slice")
	}
}

func TestField_AddEntity(t *testing.T) {
	field := createTestField()

	t.Run("human gets random in-range position", func(t *testing.T) {
		for i := int32(0); i < 100; i++ {
			e := NewHuman(i)
			e.Position = Vector{X: -50, Y: -50}
			if err := field.AddEntity(e); err != nil {
				t.Fatalf("AddEntity failed: %v", err)
			}
			if e.Position.X < 0 || e.Position.X >= DefaultFieldSize || e.Position.Y < 0 || e.Position.Y >= DefaultFieldSize {
				t.Fatalf("Human spawned out of range: %v", e.Position)
			}
		}
	})

	t.Run("bot keeps supplied position", func(t *testing.T) {
		bot := NewBot(5000, Vector{X: 12, Y: 34}, Vector{X: 1, Y: 1})
		if err := field.AddEntity(bot); err != nil {
			t.Fatalf("AddEntity failed: %v", err)
		}
		if bot.Position != (Vector{X: 12, Y: 34}) {
			t.Errorf("Bot position changed: %v", bot.Position)
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := field.AddEntity(NewHuman(5000))
		if !errors.Is(err, ErrDuplicateEntity) {
			t.Errorf("Expected ErrDuplicateEntity, got %v", err)
		}
	})

	t.Run("nil entity rejected", func(t *testing.T) {
		if err := field.AddEntity(nil); !errors.Is(err, ErrNilEntity) {
			t.Errorf("Expected ErrNilEntity, got %v", err)
		}
	})

	if field.Len() != 101 {
		t.Errorf("Expected 101 entities, got %d", field.Len())
	}
}

func TestField_RemoveEntityPreservesOrder(t *testing.T) {
	field := createTestField()

	entities := []*Entity{NewHuman(1), NewHuman(2), NewHuman(3), NewHuman(4)}
	for _, e := range entities {
		if err := field.AddEntity(e); err != nil {
			t.Fatalf("AddEntity failed: %v", err)
		}
	}

	if !field.RemoveEntity(entities[1]) {
		t.Fatal("Expected entity 2 to be removed")
	}
	if field.RemoveEntity(entities[1]) {
		t.Error("Removing twice should report false")
	}
	if field.RemoveEntity(NewHuman(3)) {
		t.Error("Removing a different pointer with the same id should report false")
	}

	snapshot := field.Snapshot()
	wantIDs := []int32{1, 3, 4}
	if len(snapshot) != len(wantIDs) {
		t.Fatalf("Expected %d entities, got %d", len(wantIDs), len(snapshot))
	}
	for i, id := range wantIDs {
		if snapshot[i].ID != id {
			t.Errorf("Snapshot[%d].ID = %d, expected %d", i, snapshot[i].ID, id)
		}
	}

	if _, ok := field.Lookup(2); ok {
		t.Error("Removed entity should not be found")
	}
	if state, ok := field.Lookup(3); !ok || state.Name != "client_3" {
		t.Errorf("Lookup(3) = %+v, %v", state, ok)
	}
}

func TestField_UpdateEntity(t *testing.T) {
	t.Run("free movement", func(t *testing.T) {
		field := createTestField()
		e := &Entity{Position: Vector{X: 500, Y: 500}, Velocity: Vector{X: 3, Y: -4}}

		field.UpdateEntity(e)

		if e.Position != (Vector{X: 503, Y: 496}) {
			t.Errorf("Expected position (503,496), got %v", e.Position)
		}
		if e.Velocity != (Vector{X: 3, Y: -4}) {
			t.Errorf("Velocity should be unchanged, got %v", e.Velocity)
		}
	})

	t.Run("obstacle leading edge reflects vx", func(t *testing.T) {
		field := createTestField(Box{X: 100, Y: 100, W: 50, H: 50})
		e := &Entity{Position: Vector{X: 95, Y: 120}, Velocity: Vector{X: 5, Y: 0}}

		field.UpdateEntity(e)

		if e.Velocity != (Vector{X: -5, Y: 0}) {
			t.Errorf("Expected velocity (-5,0), got %v", e.Velocity)
		}
		if e.Position != (Vector{X: 90, Y: 120}) {
			t.Errorf("Expected position (90,120), got %v", e.Position)
		}
	})

	t.Run("obstacle reflects vy only", func(t *testing.T) {
		field := createTestField(Box{X: 100, Y: 100, W: 50, H: 50})
		e := &Entity{Position: Vector{X: 120, Y: 160}, Velocity: Vector{X: 2, Y: -15}}

		field.UpdateEntity(e)

		if e.Velocity != (Vector{X: 2, Y: 15}) {
			t.Errorf("Expected velocity (2,15), got %v", e.Velocity)
		}
		if e.Position != (Vector{X: 122, Y: 175}) {
			t.Errorf("Expected position (122,175), got %v", e.Position)
		}
	})

	t.Run("diagonal approach enters obstacle for one step", func(t *testing.T) {
		field := createTestField(Box{X: 100, Y: 100, W: 50, H: 50})
		e := &Entity{Position: Vector{X: 95, Y: 95}, Velocity: Vector{X: 10, Y: 10}}

		field.UpdateEntity(e)
		if e.Position != (Vector{X: 105, Y: 105}) {
			t.Fatalf("Expected entity inside obstacle at (105,105), got %v", e.Position)
		}

		field.UpdateEntity(e)
		if e.Velocity != (Vector{X: -10, Y: 10}) {
			t.Errorf("Expected reflected velocity (-10,10), got %v", e.Velocity)
		}
		if e.Position != (Vector{X: 95, Y: 115}) {
			t.Errorf("Expected position (95,115), got %v", e.Position)
		}
	})

	t.Run("far obstacle skipped by distance check", func(t *testing.T) {
		field := createTestField(Box{X: 1000, Y: 100, W: 50, H: 50})
		e := &Entity{Position: Vector{X: 95, Y: 120}, Velocity: Vector{X: 5, Y: 0}}

		field.UpdateEntity(e)

		if e.Velocity != (Vector{X: 5, Y: 0}) {
			t.Errorf("Velocity should be unchanged, got %v", e.Velocity)
		}
	})

	t.Run("wall reflects before moving", func(t *testing.T) {
		field := createTestField()
		e := &Entity{Position: Vector{X: 2, Y: 1998}, Velocity: Vector{X: -5, Y: 5}}

		field.UpdateEntity(e)

		if e.Velocity != (Vector{X: 5, Y: -5}) {
			t.Errorf("Expected velocity (5,-5), got %v", e.Velocity)
		}
		if e.Position != (Vector{X: 7, Y: 1993}) {
			t.Errorf("Expected position (7,1993), got %v", e.Position)
		}
	})

	t.Run("wall hit skips obstacle test", func(t *testing.T) {
		// Vertical step would enter the box, but the wall hit on X wins
		field := createTestField(Box{X: 0, Y: 100, W: 50, H: 50})
		e := &Entity{Position: Vector{X: 1, Y: 95}, Velocity: Vector{X: -3, Y: 10}}

		field.UpdateEntity(e)

		if e.Velocity != (Vector{X: 3, Y: 10}) {
			t.Errorf("Expected velocity (3,10), got %v", e.Velocity)
		}
		if e.Position != (Vector{X: 4, Y: 105}) {
			t.Errorf("Expected position (4,105), got %v", e.Position)
		}
	})
}

func TestField_WallContainment(t *testing.T) {
	rng := newTestRand()
	size := int32(DefaultFieldSize)
	field := NewField(size, GenerateObstacles(rng, size, DefaultObstacleCount, DefaultObstacleMinSize, DefaultObstacleMaxSize), rng)

	const maxSpeed = 100
	for i := 0; i < 5000; i++ {
		start := Vector{X: rng.Int32N(size), Y: rng.Int32N(size)}
		velocity := Vector{X: rng.Int32N(2*maxSpeed+1) - maxSpeed, Y: rng.Int32N(2*maxSpeed+1) - maxSpeed}
		target := start.Add(velocity)
		wallX := target.X < 0 || target.X >= size
		wallY := target.Y < 0 || target.Y >= size

		e := &Entity{Position: start, Velocity: velocity}
		field.UpdateEntity(e)

		if wallX && (e.Position.X < 0 || e.Position.X >= size) {
			t.Fatalf("start=%v velocity=%v: x escaped field, got %v", start, velocity, e.Position)
		}
		if wallY && (e.Position.Y < 0 || e.Position.Y >= size) {
			t.Fatalf("start=%v velocity=%v: y escaped field, got %v", start, velocity, e.Position)
		}
		if wallX && e.Velocity.X != -velocity.X {
			t.Fatalf("start=%v velocity=%v: expected vx reflected, got %v", start, velocity, e.Velocity)
		}
	}
}

func TestField_MoveClampsVelocity(t *testing.T) {
	size := int32(DefaultFieldSize)
	field := createTestField()
	limit := field.MaxStep()

	if 2*limit >= size {
		t.Fatalf("MaxStep %d must be below half the field size %d", limit, size)
	}

	velocities := []Vector{
		{X: size, Y: 0},
		{X: -size, Y: 0},
		{X: 0, Y: size},
		{X: 1500, Y: -1500},
		{X: math.MinInt32, Y: 0},
		{X: 0, Y: math.MinInt32},
		{X: math.MaxInt32, Y: math.MinInt32},
	}
	starts := []Vector{
		{X: 0, Y: 0},
		{X: 1000, Y: 1000},
		{X: size - 1, Y: size - 1},
		{X: 1, Y: size - 2},
	}

	for _, start := range starts {
		for _, v := range velocities {
			e := &Entity{ID: 1, Position: start}
			for step := 0; step < 3; step++ {
				got := field.Move(e, v)
				if got.X < -limit || got.X > limit || got.Y < -limit || got.Y > limit {
					t.Fatalf("start=%v v=%v step %d: velocity %v exceeds %d", start, v, step, got, limit)
				}
				if e.Position.X < 0 || e.Position.X >= size || e.Position.Y < 0 || e.Position.Y >= size {
					t.Fatalf("start=%v v=%v step %d: escaped field, got %v", start, v, step, e.Position)
				}
			}
		}
	}

	t.Run("obstacle bounce near a wall", func(t *testing.T) {
		field := createTestField(Box{X: 400, Y: 600, W: 200, H: 100})
		e := &Entity{ID: 3, Position: Vector{X: 500, Y: 2}}

		got := field.Move(e, Vector{X: 0, Y: 650})
		if got != (Vector{X: 0, Y: -650}) {
			t.Errorf("Expected velocity (0,-650), got %v", got)
		}
		if e.Position != (Vector{X: 500, Y: 0}) {
			t.Errorf("Expected position (500,0), got %v", e.Position)
		}

		got = field.Move(e, Vector{X: 0, Y: 1})
		if got != (Vector{X: 0, Y: 1}) || e.Position != (Vector{X: 500, Y: 1}) {
			t.Errorf("Expected to move on to (500,1), got position %v velocity %v", e.Position, got)
		}
	})

	t.Run("small velocities pass through", func(t *testing.T) {
		e := &Entity{ID: 2, Position: Vector{X: 1000, Y: 1000}}
		if got := field.Move(e, Vector{X: 3, Y: -4}); got != (Vector{X: 3, Y: -4}) {
			t.Errorf("Expected velocity (3,-4), got %v", got)
		}
	})
}

func TestField_MoveAndEach(t *testing.T) {
	field := createTestField(Box{X: 100, Y: 100, W: 50, H: 50})

	e := NewHuman(1)
	if err := field.AddEntity(e); err != nil {
		t.Fatalf("AddEntity failed: %v", err)
	}

	// Pin the position so the move is predictable
	field.Each(func(entity *Entity) {
		entity.Position = Vector{X: 95, Y: 120}
	})

	got := field.Move(e, Vector{X: 5, Y: 0})
	if got != (Vector{X: -5, Y: 0}) {
		t.Errorf("Move returned %v, expected (-5,0)", got)
	}

	state, ok := field.Lookup(1)
	if !ok {
		t.Fatal("Entity not found")
	}
	if state.Position != (Vector{X: 90, Y: 120}) || state.Velocity != got {
		t.Errorf("Unexpected state after move: %+v", state)
	}
}

func TestField_ConcurrentAccess(t *testing.T) {
	field := createTestField(GenerateObstacles(newTestRand(), DefaultFieldSize, 10, 50, 100)...)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			e := NewHuman(id)
			if err := field.AddEntity(e); err != nil {
				t.Errorf("AddEntity(%d) failed: %v", id, err)
				return
			}
			for j := 0; j < 200; j++ {
				field.Move(e, Vector{X: 3, Y: -2})
				_ = field.Snapshot()
			}
			field.RemoveEntity(e)
		}(int32(i))
	}
	wg.Wait()

	if field.Len() != 0 {
		t.Errorf("Expected empty field, got %d entities", field.Len())
	}
}
