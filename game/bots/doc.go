// Package bots drives the server-controlled entities of a field.
//
// Bots are spawned once at startup with a random id in [0,1000), a random
// position and a velocity whose components are never zero. They are never
// removed. Each broadcast tick the Driver advances every bot through the
// same Field.UpdateEntity path used for human move requests, so bots bounce
// off walls and obstacles exactly like players do.
//
// Usage:
//
//	driver := bots.NewDriver(field, rng, 15, 2)
//	if err := driver.Spawn(); err != nil {
//		log.Fatal(err)
//	}
//
//	// once per broadcast tick
//	driver.Tick()
package bots
