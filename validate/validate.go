// Command validate checks every world configuration JSON file in a directory
// (default ../configs). Beyond the schema rules enforced by the engine it
// checks that:
//   - every zone is well formed (the same rules the zone registry applies)
//   - total_zones can be reached with the valid zones
//   - every zone's trigger circle can be reached from inside the boundary
//   - overlay IDs are unique and player-facing messages are present
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wricardo/grid-explorer/game/engine"
)

// ValidationResult captures the outcome of validating a single file. Errors
// make the file invalid; warnings and info never do.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration JSON file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, err := engine.ParseGameConfig(data)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	registry, skipped := buildRegistry(config.Zones)
	for _, reason := range skipped {
		result.fail("Zone skipped: %s", reason)
	}
	if registry.Len() == 0 {
		result.fail("No valid zones")
		return result
	}

	totalZones := config.Game.TotalZones
	if totalZones == 0 {
		totalZones = registry.Len()
	}
	if totalZones > registry.Len() {
		result.fail("game.total_zones is %d but only %d zones are valid; exploration could never complete",
			totalZones, registry.Len())
	}

	validateReachability(&result, config, registry.All())
	validatePresentation(&result, config, registry.All())

	if result.Valid {
		result.Info = append(result.Info,
			fmt.Sprintf("✓ Name: %s", config.Name),
			fmt.Sprintf("✓ Boundary: ±%g", config.World.BoundaryLimit),
			fmt.Sprintf("✓ Zones: %d (completion at %d)", registry.Len(), totalZones),
			fmt.Sprintf("✓ Max XP: %d", totalZones*config.Game.XPPerZone),
			fmt.Sprintf("✓ Trigger distance: %g", config.ZoneSettings.TriggerDistance),
		)
	}

	return result
}

// buildRegistry builds the zone registry the engine would build and collects
// the reasons it skipped zones
func buildRegistry(specs []engine.ZoneSpec) (*engine.ZoneRegistry, []string) {
	var buf bytes.Buffer
	registry := engine.NewZoneRegistry(specs, zerolog.New(&buf).Level(zerolog.WarnLevel))

	var skipped []string
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var entry struct {
			Index   int    `json:"index"`
			ZoneID  string `json:"zone_id"`
			Message string `json:"message"`
		}
		if err := dec.Decode(&entry); err != nil {
			break
		}
		id := entry.ZoneID
		if id == "" {
			id = "<no id>"
		}
		skipped = append(skipped, fmt.Sprintf("#%d %s: %s", entry.Index, id,
			strings.TrimPrefix(entry.Message, "skipping zone: ")))
	}
	return registry, skipped
}

// validateReachability checks that each zone can actually trigger: the bike
// hovers at the start height and never leaves the boundary square.
func validateReachability(result *ValidationResult, config *engine.GameConfig, zones []engine.ZoneDescriptor) {
	limit := config.World.BoundaryLimit
	radius := config.ZoneSettings.TriggerDistance
	hover := config.Bike.StartPosition.Y

	for _, z := range zones {
		p := z.Position
		dy := math.Abs(p.Y() - hover)
		if dy >= radius {
			result.fail("Zone %s at height %g can never trigger from hover height %g", z.ID, p.Y(), hover)
			continue
		}
		if config.Debug.GodMode {
			continue
		}

		// nearest reachable point of the boundary square
		nx := math.Max(-limit, math.Min(limit, p.X()))
		nz := math.Max(-limit, math.Min(limit, p.Z()))
		planar := math.Hypot(p.X()-nx, p.Z()-nz)
		if math.Sqrt(planar*planar+dy*dy) >= radius {
			result.fail("Zone %s at (%g, %g) cannot be reached inside boundary ±%g", z.ID, p.X(), p.Z(), limit)
		} else if planar > 0 {
			result.warn("Zone %s lies outside the boundary but its trigger circle reaches inside", z.ID)
		}
	}
}

// validatePresentation checks overlays, rewards and messages
func validatePresentation(result *ValidationResult, config *engine.GameConfig, zones []engine.ZoneDescriptor) {
	overlays := map[string]string{}
	for _, z := range zones {
		if z.OverlayID == "" {
			result.warn("Zone %s has no overlay; discovering it will not pause the world", z.ID)
			continue
		}
		if other, dup := overlays[z.OverlayID]; dup {
			result.fail("Overlay %s is used by both %s and %s", z.OverlayID, other, z.ID)
			continue
		}
		overlays[z.OverlayID] = z.ID

		if z.XPReward != config.Game.XPPerZone {
			result.warn("Zone %s rewards %d XP but xp_per_zone is %d", z.ID, z.XPReward, config.Game.XPPerZone)
		}
	}

	required := map[string]string{
		"welcome_title":    config.Messages.WelcomeTitle,
		"complete_title":   config.Messages.CompleteTitle,
		"complete_message": config.Messages.CompleteMessage,
	}
	for _, key := range []string{"welcome_title", "complete_title", "complete_message"} {
		if strings.TrimSpace(required[key]) == "" {
			result.warn("Message %s is empty", key)
		}
	}
}

// main validates every *.json file in the directory given as the first
// argument, printing a concise report and exiting with non-zero status if any
// are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(configDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No config files found in %s\n", configDir)
		os.Exit(1)
	}

	if !report(files) {
		os.Exit(1)
	}
}

// report prints the result of every file and returns whether all are valid
func report(files []string) bool {
	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Info {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
		for _, w := range result.Warnings {
			fmt.Println("  ⚠️  " + w)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
	}
	return allValid
}
