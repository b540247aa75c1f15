package engine

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

// ZoneRegistry is the immutable, ordered set of valid zones of a world
type ZoneRegistry struct {
	zones []ZoneDescriptor
	index map[string]int
}

// NewZoneRegistry converts config zones into descriptors. Zones without an id,
// position or reward, and repeated ids, are skipped with a warning.
func NewZoneRegistry(specs []ZoneSpec, logger zerolog.Logger) *ZoneRegistry {
	r := &ZoneRegistry{
		zones: make([]ZoneDescriptor, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}

	for i, spec := range specs {
		if reason := rejectZone(spec); reason != "" {
			logger.Warn().Int("index", i).Str("zone_id", spec.ID).Msgf("skipping zone: %s", reason)
			continue
		}
		if _, dup := r.index[spec.ID]; dup {
			logger.Warn().Int("index", i).Str("zone_id", spec.ID).Msg("skipping zone: duplicate id")
			continue
		}

		name := spec.Name
		if name == "" {
			name = spec.ID
		}
		r.index[spec.ID] = len(r.zones)
		r.zones = append(r.zones, ZoneDescriptor{
			ID:        spec.ID,
			Name:      name,
			Subtitle:  spec.Subtitle,
			Position:  spec.Position.Vec3(),
			OverlayID: spec.OverlayID,
			XPReward:  *spec.XPReward,
			Color:     spec.Color,
		})
	}

	return r
}

func rejectZone(spec ZoneSpec) string {
	switch {
	case strings.TrimSpace(spec.ID) == "":
		return "missing id"
	case spec.Position == nil:
		return "missing position"
	case spec.XPReward == nil:
		return "missing xp reward"
	case *spec.XPReward < 0:
		return "negative xp reward"
	case !finite(*spec.Position):
		return "non-finite position"
	}
	return ""
}

func finite(p Point) bool {
	for _, f := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// All returns a copy of the zones in load order
func (r *ZoneRegistry) All() []ZoneDescriptor {
	out := make([]ZoneDescriptor, len(r.zones))
	copy(out, r.zones)
	return out
}

// Get looks a zone up by id
func (r *ZoneRegistry) Get(id string) (ZoneDescriptor, bool) {
	i, ok := r.index[id]
	if !ok {
		return ZoneDescriptor{}, false
	}
	return r.zones[i], true
}

// Len returns the number of valid zones
func (r *ZoneRegistry) Len() int { return len(r.zones) }

// Nearest returns the closest zone strictly within radius of pos. Ties keep
// the zone loaded first.
func (r *ZoneRegistry) Nearest(pos mgl64.Vec3, radius float64) (ZoneDescriptor, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, z := range r.zones {
		d := pos.Sub(z.Position).Len()
		if d < radius && d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return ZoneDescriptor{}, 0, false
	}
	return r.zones[best], bestDist, true
}
