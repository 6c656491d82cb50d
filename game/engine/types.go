package engine

const (
	// Reference world dimensions
	DefaultFieldSize       = 2000
	DefaultObstacleCount   = 50
	DefaultObstacleMinSize = 50
	DefaultObstacleMaxSize = 100

	// MaxNameLength is the fixed width of an entity name on the wire
	MaxNameLength = 64

	humanNamePrefix = "client_"
	botNamePrefix   = "bot_"
)

// Vector represents a 2D integer vector (position or velocity)
type Vector struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Box represents a static axis-aligned obstacle
type Box struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	W int32 `json:"w"`
	H int32 `json:"h"`
}

// Entity represents a moving point on the field, either human or bot controlled
type Entity struct {
	ID       int32
	Name     string
	Position Vector
	Velocity Vector
	IsBot    bool
}

// EntityState is a point-in-time copy of an entity, safe to share across goroutines
type EntityState struct {
	ID       int32  `json:"id"`
	Name     string `json:"name"`
	Position Vector `json:"position"`
	Velocity Vector `json:"velocity"`
	IsBot    bool   `json:"bot"`
}
