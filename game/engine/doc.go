// Package engine provides the authoritative world simulation for fieldsync.
//
// The engine package implements:
//   - Integer vector and axis-aligned box geometry
//   - The shared Field: static obstacles plus a registry of moving entities
//   - Wall and obstacle collision with velocity reflection
//
// Core Types:
//
// Vector and Box are plain value types. Entity is a mutable moving point
// owned by the Field once registered; EntityState is its copyable snapshot.
// Field holds the obstacles (fixed at construction) and the entity registry.
//
// Usage:
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	obstacles := engine.GenerateObstacles(rng, 2000, 50, 50, 100)
//	field := engine.NewField(2000, obstacles, rng)
//
//	player := engine.NewHuman(42)
//	if err := field.AddEntity(player); err != nil {
//		log.Fatal(err)
//	}
//
//	// Apply a requested velocity; the field may reflect it
//	velocity := field.Move(player, engine.Vector{X: 5, Y: -3})
//
// Physics:
//
// Each update computes the target point, tests the walls, and if no wall
// is hit tests obstacles near the target. Every colliding axis has its
// velocity component negated and the entity then moves by the corrected
// velocity. The move always happens, so an entity can end one step inside
// an obstacle and leave it on the following step.
//
// Concurrency:
//
// Registry changes, snapshots and the locking helpers Move and Each share
// one mutex. UpdateEntity does not lock and must only be called from inside
// Each or through Move.
package engine
