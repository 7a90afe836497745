package pathing

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Path is a sequence of waypoints consumed front first.
type Path struct {
	Waypoints []mgl64.Vec3

	// Set when no route was found within the hop bound and the path jumps
	// straight to the destination.
	Direct bool
}

func (p *Path) Len() int {
	return len(p.Waypoints)
}

func (p *Path) Empty() bool {
	return len(p.Waypoints) == 0
}

// Peek returns the next waypoint without consuming it.
func (p *Path) Peek() (mgl64.Vec3, bool) {
	if p.Empty() {
		return mgl64.Vec3{}, false
	}
	return p.Waypoints[0], true
}

// Pop consumes and returns the next waypoint.
func (p *Path) Pop() (mgl64.Vec3, bool) {
	next, ok := p.Peek()
	if ok {
		p.Waypoints = p.Waypoints[1:]
	}
	return next, ok
}
