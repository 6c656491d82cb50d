package bots

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/wricardo/mcp-training/fieldsync/game/engine"
)

const (
	// MaxBotID bounds bot ids to [0,MaxBotID)
	MaxBotID = 1000

	maxIDAttempts = 200
)

var ErrNoFreeID = errors.New("no free bot id")

// Driver owns the bot population of a field
type Driver struct {
	field    *engine.Field
	rng      *rand.Rand
	count    int
	maxSpeed int32

	mu   sync.Mutex
	bots []*engine.Entity
}

// NewDriver creates a driver that will spawn count bots with velocity
// components in [-maxSpeed,maxSpeed]. A nil rng selects a randomly seeded source.
func NewDriver(field *engine.Field, rng *rand.Rand, count int, maxSpeed int32) *Driver {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if maxSpeed < 1 {
		maxSpeed = 1
	}

	return &Driver{
		field:    field,
		rng:      rng,
		count:    count,
		maxSpeed: maxSpeed,
		bots:     make([]*engine.Entity, 0, count),
	}
}

// Spawn creates and registers the configured number of bots
func (d *Driver) Spawn() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.bots) < d.count {
		bot, err := d.spawnOne()
		if err != nil {
			return fmt.Errorf("failed to spawn bot %d of %d: %w", len(d.bots)+1, d.count, err)
		}
		d.bots = append(d.bots, bot)
	}
	return nil
}

func (d *Driver) spawnOne() (*engine.Entity, error) {
	size := d.field.Size()
	position := engine.Vector{X: d.rng.Int32N(size), Y: d.rng.Int32N(size)}
	velocity := engine.Vector{X: d.randomComponent(), Y: d.randomComponent()}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		bot := engine.NewBot(d.rng.Int32N(MaxBotID), position, velocity)
		err := d.field.AddEntity(bot)
		if err == nil {
			return bot, nil
		}
		if !errors.Is(err, engine.ErrDuplicateEntity) {
			return nil, err
		}
	}
	return nil, ErrNoFreeID
}

// randomComponent draws a non-zero velocity component
func (d *Driver) randomComponent() int32 {
	for {
		v := d.rng.Int32N(2*d.maxSpeed+1) - d.maxSpeed
		if v != 0 {
			return v
		}
	}
}

// Tick advances every registered bot by one physics step in registry order
// and returns the number of bots updated.
func (d *Driver) Tick() int {
	updated := 0
	d.field.Each(func(e *engine.Entity) {
		if !e.IsBot {
			return
		}
		d.field.UpdateEntity(e)
		updated++
	})
	return updated
}

// Count returns the number of spawned bots
func (d *Driver) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.bots)
}

// Bots returns snapshots of the spawned bots in registry order
func (d *Driver) Bots() []engine.EntityState {
	all := d.field.Snapshot()
	result := make([]engine.EntityState, 0, len(all))
	for _, s := range all {
		if s.IsBot {
			result = append(result, s)
		}
	}
	return result
}
