package gamedata

import (
	"fmt"
	"sort"
)

// Kind distinguishes plantable housing objects. A pot holds one plot and
// keeps the zone's land id; a ridge holds eight and carries its own land id
// in the housing link.
type Kind int

const (
	KindNone Kind = iota
	KindPot
	KindRidge
)

func (k Kind) String() string {
	switch k {
	case KindPot:
		return "pot"
	case KindRidge:
		return "ridge"
	default:
		return "none"
	}
}

// Item is a catalog id with a display name.
type Item struct {
	ID   uint32 `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// SeedInfo links a seed's land-data index to the seed item and its product.
type SeedInfo struct {
	Index uint32 `yaml:"index" json:"index"`
	Seed  Item   `yaml:"seed" json:"seed"`
	Item  Item   `yaml:"item" json:"item"`
}

// SeedTime holds growth and wilt durations in hours, keyed by seed index.
type SeedTime struct {
	Index    uint32 `yaml:"index" json:"index"`
	GrowTime uint32 `yaml:"grow_time" json:"grow_time"`
	WiltTime uint32 `yaml:"wilt_time" json:"wilt_time"`
}

type seedHours struct {
	grow uint32
	wilt uint32
}

// Dataset is immutable after construction. Reload builds a new one.
type Dataset struct {
	soils       map[uint32]string
	fertilizers map[uint32]string
	seeds       map[uint32]string
	products    map[uint32]string
	seedProduct map[uint32]uint32
	seedByIndex map[uint32]uint32
	times       map[uint32]seedHours

	pots       map[uint32]string
	ridges     map[uint32]string
	maps       map[uint16]string
	apartments map[uint16]string
}

// Tables is the raw form of the loadable reference files.
type Tables struct {
	Soils       []Item
	Fertilizers []Item
	Seeds       []SeedInfo
	SeedTimes   []SeedTime
}

// New builds a dataset from tables plus the built-in housing tables. Seed
// times whose index has no seed entry are dropped.
func New(t Tables) *Dataset {
	d := &Dataset{
		soils:       make(map[uint32]string, len(t.Soils)),
		fertilizers: make(map[uint32]string, len(t.Fertilizers)),
		seeds:       make(map[uint32]string, len(t.Seeds)),
		products:    make(map[uint32]string, len(t.Seeds)),
		seedProduct: make(map[uint32]uint32, len(t.Seeds)),
		seedByIndex: make(map[uint32]uint32, len(t.Seeds)),
		times:       make(map[uint32]seedHours, len(t.SeedTimes)),
		pots:        copyNames(potNames),
		ridges:      copyNames(ridgeNames),
		maps:        copyNames(mapNames),
		apartments:  copyNames(apartmentNames),
	}
	for _, it := range t.Soils {
		d.soils[it.ID] = it.Name
	}
	for _, it := range t.Fertilizers {
		d.fertilizers[it.ID] = it.Name
	}
	for _, s := range t.Seeds {
		d.seeds[s.Seed.ID] = s.Seed.Name
		d.products[s.Item.ID] = s.Item.Name
		d.seedProduct[s.Seed.ID] = s.Item.ID
		d.seedByIndex[s.Index] = s.Seed.ID
	}
	for _, st := range t.SeedTimes {
		seedID, ok := d.seedByIndex[st.Index]
		if !ok {
			continue
		}
		d.times[seedID] = seedHours{grow: st.GrowTime, wilt: st.WiltTime}
	}
	return d
}

// Empty is a dataset with only the built-in housing tables.
func Empty() *Dataset { return New(Tables{}) }

func copyNames[K comparable](in map[K]string) map[K]string {
	out := make(map[K]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// GardenKind reports whether objID is a plantable object and which kind.
func (d *Dataset) GardenKind(objID uint32) (Kind, string) {
	if name, ok := d.pots[objID]; ok {
		return KindPot, name
	}
	if name, ok := d.ridges[objID]; ok {
		return KindRidge, name
	}
	return KindNone, ""
}

func (d *Dataset) IsGarden(objID uint32) bool {
	k, _ := d.GardenKind(objID)
	return k != KindNone
}

// SeedIDByIndex maps a land-data seed index to a seed item id, 0 if unknown.
func (d *Dataset) SeedIDByIndex(index uint32) uint32 {
	return d.seedByIndex[index]
}

func (d *Dataset) SeedName(id uint32) string {
	if name, ok := d.seeds[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Seed(%d)", id)
}

func (d *Dataset) SoilName(id uint32) string {
	if name, ok := d.soils[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Soil(%d)", id)
}

func (d *Dataset) FertilizerName(id uint32) string {
	if name, ok := d.fertilizers[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Fertilizer(%d)", id)
}

// ItemName looks an id up across products, seeds, soils and fertilizers.
func (d *Dataset) ItemName(id uint32) (string, bool) {
	for _, m := range []map[uint32]string{d.products, d.seeds, d.soils, d.fertilizers} {
		if name, ok := m[id]; ok {
			return name, true
		}
	}
	return "", false
}

// SeedProduct returns the regular harvest item of a seed.
func (d *Dataset) SeedProduct(seedID uint32) (uint32, bool) {
	id, ok := d.seedProduct[seedID]
	return id, ok
}

// GrowSeconds is 0 when the seed has no timing data.
func (d *Dataset) GrowSeconds(seedID uint32) uint64 {
	return uint64(d.times[seedID].grow) * 3600
}

// WiltSeconds is 0 when the seed has no timing data.
func (d *Dataset) WiltSeconds(seedID uint32) uint64 {
	return uint64(d.times[seedID].wilt) * 3600
}

func (d *Dataset) MapName(mapID uint16) (string, bool) {
	name, ok := d.maps[mapID]
	return name, ok
}

// MapIDByName matches a residential area display name exactly.
func (d *Dataset) MapIDByName(name string) (uint16, bool) {
	for id, n := range d.maps {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// MapNames returns the residential area names, sorted.
func (d *Dataset) MapNames() []string {
	out := make([]string, 0, len(d.maps))
	for _, n := range d.maps {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Counts reports table sizes for status output.
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		"soils":       len(d.soils),
		"fertilizers": len(d.fertilizers),
		"seeds":       len(d.seeds),
		"seed_times":  len(d.times),
	}
}
