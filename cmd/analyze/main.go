// Command analyze prints quick, human-readable heuristics about the world
// configurations in a configs directory. For every zone it estimates how long
// a straight ride from the start position takes, and it highlights zones that
// sit outside the boundary or whose trigger circles overlap.
package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/wricardo/grid-explorer/game/engine"
)

// ZoneAnalysis holds the ride estimates for a single zone
type ZoneAnalysis struct {
	ID            string
	Distance      float64
	Heading       float64
	TurnFrames    int
	TravelFrames  int
	SprintFrames  int
	OutsideBounds bool
}

// Analysis is the result of analyzing one config file
type Analysis struct {
	Name        string
	Boundary    float64
	Start       mgl64.Vec3
	Zones       []ZoneAnalysis
	Overlapping [][2]string
	// SprintTour estimates a nearest-neighbour tour of every zone at sprint speed
	SprintTour int
}

func main() {
	configDir := "configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(configDir, "*.json"))
	if err != nil || len(files) == 0 {
		fmt.Printf("No config files found in %s\n", configDir)
		os.Exit(1)
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		analysis, err := analyzeConfig(file)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printAnalysis(analysis)
	}
}

func analyzeConfig(path string) (*Analysis, error) {
	config, err := engine.LoadGameConfig(path)
	if err != nil {
		return nil, err
	}

	zones := engine.NewZoneRegistry(config.Zones, zerolog.Nop()).All()
	start := config.Bike.StartPosition.Vec3()
	radius := config.ZoneSettings.TriggerDistance
	limit := config.World.BoundaryLimit

	a := &Analysis{
		Name:     config.Name,
		Boundary: limit,
		Start:    start,
	}

	for _, z := range zones {
		dx := z.Position.X() - start.X()
		dz := z.Position.Z() - start.Z()
		dist := math.Hypot(dx, dz)
		heading := math.Atan2(-dx, -dz)

		a.Zones = append(a.Zones, ZoneAnalysis{
			ID:            z.ID,
			Distance:      dist,
			Heading:       heading,
			TurnFrames:    framesFor(math.Abs(heading), config.Bike.RotationSpeed),
			TravelFrames:  framesFor(dist-radius, config.Bike.Speed),
			SprintFrames:  framesFor(dist-radius, config.Bike.SprintSpeed),
			OutsideBounds: math.Abs(z.Position.X()) > limit || math.Abs(z.Position.Z()) > limit,
		})
	}

	for i := 0; i < len(zones); i++ {
		for j := i + 1; j < len(zones); j++ {
			if zones[i].Position.Sub(zones[j].Position).Len() < 2*radius {
				a.Overlapping = append(a.Overlapping, [2]string{zones[i].ID, zones[j].ID})
			}
		}
	}

	a.SprintTour = sprintTour(start, zones, radius, config.Bike.SprintSpeed)
	return a, nil
}

// sprintTour greedily visits the nearest unvisited zone, stopping at the edge
// of each trigger circle
func sprintTour(start mgl64.Vec3, zones []engine.ZoneDescriptor, radius, speed float64) int {
	pos := start
	remaining := append([]engine.ZoneDescriptor(nil), zones...)
	frames := 0

	for len(remaining) > 0 {
		best, bestDist := 0, math.Inf(1)
		for i, z := range remaining {
			flat := mgl64.Vec3{z.Position.X(), pos.Y(), z.Position.Z()}
			if d := flat.Sub(pos).Len(); d < bestDist {
				best, bestDist = i, d
			}
		}
		target := remaining[best]
		flat := mgl64.Vec3{target.Position.X(), pos.Y(), target.Position.Z()}
		if bestDist > radius {
			pos = pos.Add(flat.Sub(pos).Normalize().Mul(bestDist - radius))
		}
		frames += framesFor(bestDist-radius, speed)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return frames
}

func framesFor(amount, perFrame float64) int {
	if amount <= 0 || perFrame <= 0 {
		return 0
	}
	return int(math.Ceil(amount / perFrame))
}

func printAnalysis(a *Analysis) {
	fmt.Printf("Name: %s\n", a.Name)
	fmt.Printf("Boundary: ±%g\n", a.Boundary)
	fmt.Printf("Start: (%g, %g)\n", a.Start.X(), a.Start.Z())
	fmt.Printf("Zones: %d\n", len(a.Zones))

	for _, z := range a.Zones {
		fmt.Printf("  %-12s dist %6.1f  heading %+.2f  turn %4d  ride %5d  sprint %5d frames\n",
			z.ID, z.Distance, z.Heading, z.TurnFrames, z.TravelFrames, z.SprintFrames)
	}

	for _, z := range a.Zones {
		if z.OutsideBounds {
			fmt.Printf("⚠️  Zone %s is outside the boundary\n", z.ID)
		}
	}
	for _, pair := range a.Overlapping {
		fmt.Printf("⚠️  Zones %s and %s have overlapping trigger circles\n", pair[0], pair[1])
	}
	fmt.Printf("Sprint tour estimate: %d frames\n", a.SprintTour)
}
