package garden

import (
	"errors"
	"fmt"

	"github.com/danmuck/gardenctl/internal/protocol/packets"
)

var ErrInvalidIdentity = errors.New("garden: invalid identity key")

// Identity names one plantable plot. It is comparable and used directly as
// a map key; two spawns of the same plot under different actor ids resolve to
// equal identities.
type Identity struct {
	Land         packets.LandIdent `json:"land"`
	ObjectID     uint32            `json:"object_id"`
	LandIndex    uint32            `json:"land_index"`
	LandSubIndex uint32            `json:"land_sub_index"`
}

// Key is the stable string form used by the persisted store.
func (id Identity) Key() string {
	return fmt.Sprintf("%d-%d-%d-%d-%d-%d-%d",
		id.Land.WorldID, id.Land.MapID, id.Land.WardNum, id.Land.LandID,
		id.ObjectID, id.LandIndex, id.LandSubIndex)
}

func (id Identity) String() string { return id.Key() }

// HousingLinkValue reassembles the index fields the way the act log encodes
// them: sub-index in the top byte, index in the low byte.
func (id Identity) HousingLinkValue() uint32 {
	return id.LandSubIndex<<24 + id.LandIndex
}

func ParseIdentity(key string) (Identity, error) {
	var (
		id                         Identity
		world, mapID, ward, landID uint16
	)
	n, err := fmt.Sscanf(key, "%d-%d-%d-%d-%d-%d-%d",
		&world, &mapID, &ward, &landID, &id.ObjectID, &id.LandIndex, &id.LandSubIndex)
	if err != nil || n != 7 {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, key)
	}
	id.Land = packets.LandIdent{WorldID: world, MapID: mapID, WardNum: ward, LandID: landID}
	if id.Key() != key {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, key)
	}
	return id, nil
}
