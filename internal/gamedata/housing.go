package gamedata

import (
	"fmt"

	"github.com/danmuck/gardenctl/internal/protocol/packets"
)

var potNames = map[uint32]string{
	197051: "Riviera Flowerpot",
	197052: "Glade Flowerpot",
	197053: "Oasis Flowerpot",
}

// 2008701..2008708 have never been seen placed but share the garden kind.
var ridgeNames = map[uint32]string{
	2003757: "Garden Patch",
	2008701: "Nursery Patch",
	2008702: "Nursery Patch",
	2008703: "Nursery Patch",
	2008704: "Nursery Patch",
	2008705: "Nursery Patch",
	2008706: "Nursery Patch",
	2008707: "Nursery Patch",
	2008708: "Nursery Patch",
}

var mapNames = map[uint16]string{
	0x153: "Mist",
	0x154: "The Lavender Beds",
	0x155: "The Goblet",
	0x281: "Shirogane",
	0x3D3: "Empyreum",
}

var apartmentNames = map[uint16]string{
	0x153: "Topmast",
	0x154: "Lily Hills",
	0x155: "Sultana's Breath",
	0x281: "Kobai Goten",
	0x3D3: "Ingleside",
}

const (
	apartmentLandBase = 0x80
	wardMask          = 0x3F
	roomShift         = 6
)

// ZoneName renders a land ident. With indoor set the plot or apartment and
// room are appended.
func (d *Dataset) ZoneName(ident packets.LandIdent, indoor bool) string {
	area, ok := d.maps[ident.MapID]
	if !ok {
		return "Unknown Zone"
	}

	s := fmt.Sprintf("%s Ward %d", area, ident.WardNum&wardMask)
	if !indoor {
		return s
	}

	if ident.LandID < apartmentLandBase {
		s += fmt.Sprintf(" Plot %d", ident.LandID+1)
	} else {
		s += fmt.Sprintf(" %s %d", d.apartments[ident.MapID], ident.LandID-(apartmentLandBase-1))
	}

	room := ident.WardNum >> roomShift
	if room != 0 {
		s += fmt.Sprintf(" Room %d", room)
	} else if ident.LandID >= apartmentLandBase {
		s += " Lobby"
	}
	return s
}

// GardenNamePos renders "<name>(<index>)" for pots and
// "<name>(<index>,<sub>)" for ridges, one-based.
func (d *Dataset) GardenNamePos(objID, index, subIndex uint32) string {
	kind, name := d.GardenKind(objID)
	if kind == KindNone {
		name = "Unknown"
	}
	pos := fmt.Sprintf("%d", index+1)
	if kind != KindPot {
		pos += fmt.Sprintf(",%d", subIndex+1)
	}
	return fmt.Sprintf("%s(%s)", name, pos)
}
