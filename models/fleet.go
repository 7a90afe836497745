package models

// A group of ships that do not fire at each other.
type Fleet struct {
	ID   uint32
	Name string

	entityIDs map[uint32]struct{}
}

func (f *Fleet) AddEntity(e *Entity) {
	if f.entityIDs == nil {
		f.entityIDs = make(map[uint32]struct{})
	}
	f.entityIDs[e.ID] = struct{}{}
	e.FleetID = f.ID
}

func (f *Fleet) RemoveEntity(e *Entity) {
	delete(f.entityIDs, e.ID)
}

func (f *Fleet) EntityIDs() map[uint32]struct{} {
	return f.entityIDs
}

func (f *Fleet) Size() int {
	return len(f.entityIDs)
}
