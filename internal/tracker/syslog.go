package tracker

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var wardPattern = regexp.MustCompile(`Ward (\d+)`)

// OnSystemLogLine derives an outdoor zone from a system message naming a
// residential area and ward. It only applies while no zone is known, for
// hosts that do not deliver zone-switch packets.
func (t *Tracker) OnSystemLogLine(eventType, seconds uint32, text string) {
	if _, ok := t.state.CurrentZone(); ok {
		return
	}
	m := wardPattern.FindStringSubmatch(text)
	if m == nil {
		return
	}
	ward, err := strconv.Atoi(m[1])
	if err != nil || ward < 1 {
		return
	}

	d := t.data.Get()
	area := ""
	for _, name := range d.MapNames() {
		if strings.Contains(text, name) && len(name) > len(area) {
			area = name
		}
	}
	mapID, ok := d.MapIDByName(area)
	if !ok {
		log.Debug().Msgf("tracker.OnSystemLogLine ward=%d no area in %q", ward, text)
		return
	}
	if t.host == nil {
		return
	}

	zone, ok := t.state.ZoneFromSystemLog(t.host.CurrentWorldID(), mapID, ward)
	if !ok {
		return
	}
	log.Info().Msgf("tracker.OnSystemLogLine type=%d at=%d zone=%q", eventType, seconds, d.ZoneName(zone.Ident, false))
}
