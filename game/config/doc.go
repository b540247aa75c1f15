// Package config loads, caches and saves world configurations.
//
// World configurations are JSON files in a configs directory. Each one
// defines the playable boundary, the bike tuning, the trigger radius and
// cooldown, the progression rules (zone count and XP per zone), the
// player-facing messages and the list of zones. Omitted tuning fields take
// the values of engine.DefaultGameConfig.
//
// The Manager keeps parsed configs in an RWMutex-guarded cache. The config
// named "classic" is the default; when it is missing the first valid config
// is used, and when the directory has none the built-in world is.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg, err := manager.LoadConfig("ring")
//	infos, err := manager.ListConfigs()
package config
