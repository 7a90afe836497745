package featureflag

type Flag string

const (
	// Routes longer than the hop bound yield an empty path instead of a
	// direct hop to the destination.
	FlagDisableDirectPathFallback Flag = "DISABLE_DIRECT_PATH_FALLBACK"

	// The navigation mesh keeps its raw random vertices.
	FlagDisableLloydRelaxation Flag = "DISABLE_LLOYD_RELAXATION"

	// Projectiles fly through ships.
	FlagDisableCollisions Flag = "DISABLE_COLLISIONS"
)

// Flags lists every known flag.
var Flags = []Flag{
	FlagDisableDirectPathFallback,
	FlagDisableLloydRelaxation,
	FlagDisableCollisions,
}
