package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/orrery/models"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	MsgTypeSnapshot  = "snapshot"
	MsgTypePing      = "ping"
	MsgTypePong      = "pong"
	MsgTypeSubscribe = "subscribe"

	ErrTypeUnknownKind = "unknown_entity_kind"
)

// Msg is the JSON frame exchanged with observers.
type Msg struct {
	Type      string `json:"type"`
	RequestID uint32 `json:"request_id,omitempty"`

	// The tick a snapshot was taken at.
	Tick uint64 `json:"tick,omitempty"`

	// Entity kinds an observer subscribes to. Empty means all of them.
	Kinds []string `json:"kinds,omitempty"`

	Entities []EntityState `json:"entities,omitempty"`
}

type EntityState struct {
	ID          uint32     `json:"id"`
	Kind        string     `json:"kind"`
	FleetID     uint32     `json:"fleet_id,omitempty"`
	Label       string     `json:"label,omitempty"`
	Position    [3]float64 `json:"position"`
	Destination uint32     `json:"destination,omitempty"`
}

func NewSnapshot(tick uint64, entities []*models.Entity) Msg {
	states := make([]EntityState, len(entities))
	for i, e := range entities {
		states[i] = EntityState{
			ID:          e.ID,
			Kind:        e.Kind.String(),
			FleetID:     e.FleetID,
			Label:       e.Label,
			Position:    e.Position(),
			Destination: e.Destination(),
		}
	}

	return Msg{
		Type:     MsgTypeSnapshot,
		Tick:     tick,
		Entities: states,
	}
}

// ParseKinds converts entity kind names into entity kinds.
func ParseKinds(names []string) ([]models.EntityKind, error) {
	kinds := make([]models.EntityKind, 0, len(names))
	for _, name := range names {
		kind, ok := parseKind(name)
		if !ok {
			return nil, errors.New("unknown entity kind").
				WithType(ErrTypeUnknownKind).
				WithTag("kind", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func parseKind(name string) (models.EntityKind, bool) {
	for _, kind := range []models.EntityKind{
		models.KindShip,
		models.KindProjectile,
		models.KindLandmark,
	} {
		if kind.String() == name {
			return kind, true
		}
	}
	return 0, false
}

// Codec sends and receives messages as JSON text frames.
var Codec = websocket.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		data, err := json.Marshal(v)
		return data, websocket.TextFrame, err
	},
	Unmarshal: func(data []byte, payloadType byte, v any) error {
		return json.Unmarshal(data, v)
	},
}
