package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wricardo/grid-explorer/game/engine"
)

func createValidConfig() *engine.GameConfig {
	cfg := engine.DefaultGameConfig()
	cfg.Name = "Test World"
	cfg.Description = "Test configuration"
	return cfg
}

func writeConfigFile(t *testing.T, dir, name string, config *engine.GameConfig) {
	t.Helper()
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()
		classic := createValidConfig()
		classic.Name = "Classic"
		writeConfigFile(t, dir, "classic", classic)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if got := manager.GetDefault().Name; got != "Classic" {
			t.Errorf("Expected default 'Classic', got '%s'", got)
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		if _, err := NewManager("/non/existent/path"); err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("falls back to first valid config", func(t *testing.T) {
		dir := t.TempDir()
		ring := createValidConfig()
		ring.Name = "Ring"
		writeConfigFile(t, dir, "ring", ring)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if got := manager.GetDefault().Name; got != "Ring" {
			t.Errorf("Expected default 'Ring', got '%s'", got)
		}
	})

	t.Run("empty directory uses built-in world", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatalf("NewManager should succeed without config files, got: %v", err)
		}
		def := manager.GetDefault()
		if def == nil || def.Name != "classic" {
			t.Fatalf("Expected built-in classic world, got %+v", def)
		}
		if len(def.Zones) != 5 {
			t.Errorf("Expected 5 built-in zones, got %d", len(def.Zones))
		}
	})
}

func TestManager_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig())

	wide := createValidConfig()
	wide.Name = "Wide"
	wide.World.BoundaryLimit = 300
	writeConfigFile(t, dir, "wide", wide)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("load existing config", func(t *testing.T) {
		config, err := manager.LoadConfig("wide")
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if config.World.BoundaryLimit != 300 {
			t.Errorf("Expected boundary 300, got %v", config.World.BoundaryLimit)
		}
	})

	t.Run("load with .json extension", func(t *testing.T) {
		config, err := manager.LoadConfig("wide.json")
		if err != nil {
			t.Fatalf("Failed to load config with extension: %v", err)
		}
		if config.Name != "Wide" {
			t.Errorf("Expected config name 'Wide', got '%s'", config.Name)
		}
	})

	t.Run("load from cache", func(t *testing.T) {
		config1, _ := manager.LoadConfig("wide")
		config2, err := manager.LoadConfig("wide")
		if err != nil {
			t.Fatalf("Failed to load config from cache: %v", err)
		}
		if config1 != config2 {
			t.Error("Expected config to be loaded from cache")
		}
	})

	t.Run("load non-existent config", func(t *testing.T) {
		if _, err := manager.LoadConfig("non-existent"); !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("Expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("path traversal is not found", func(t *testing.T) {
		if _, err := manager.LoadConfig("../secrets"); !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("Expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("load invalid config", func(t *testing.T) {
		bad := createValidConfig()
		bad.Bike.Speed = 0
		writeConfigFile(t, dir, "bad", bad)

		_, err := manager.LoadConfig("bad")
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("load malformed json", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := manager.LoadConfig("broken"); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("omitted tuning keeps defaults", func(t *testing.T) {
		raw := `{"name":"Sparse","description":"only zones","world":{"boundary_limit":50},
			"zones":[{"id":"z","name":"Z","position":{"x":10,"y":0,"z":10},"xp_reward":25}]}`
		if err := os.WriteFile(filepath.Join(dir, "sparse.json"), []byte(raw), 0644); err != nil {
			t.Fatal(err)
		}
		config, err := manager.LoadConfig("sparse")
		if err != nil {
			t.Fatalf("Failed to load sparse config: %v", err)
		}
		if config.Bike.Speed != 0.5 || config.ZoneSettings.TriggerDistance != 10 {
			t.Errorf("Expected default tuning, got %+v %+v", config.Bike, config.ZoneSettings)
		}
		if len(config.Zones) != 1 {
			t.Errorf("Expected only the file's zones, got %d", len(config.Zones))
		}
	})
}

func TestManager_ListConfigs(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig())

	small := createValidConfig()
	small.Name = "Small"
	small.Zones = small.Zones[:2]
	small.Game.TotalZones = 2
	writeConfigFile(t, dir, "small", small)

	bad := createValidConfig()
	bad.Name = ""
	writeConfigFile(t, dir, "bad", bad)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0755); err != nil {
		t.Fatal(err)
	}

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	configs, err := manager.ListConfigs()
	if err != nil {
		t.Fatalf("Failed to list configs: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("Expected 2 valid configs, got %d", len(configs))
	}
	if configs[0].ConfigID != "classic" || configs[1].ConfigID != "small" {
		t.Errorf("Expected sorted [classic small], got [%s %s]", configs[0].ConfigID, configs[1].ConfigID)
	}

	info := configs[1]
	if info.Filename != "small.json" || info.Name != "Small" {
		t.Errorf("Unexpected info: %+v", info)
	}
	if info.ZoneCount != 2 || info.TotalZones != 2 || info.XPPerZone != 25 || info.BoundaryLimit != 90 {
		t.Errorf("Unexpected summary: %+v", info)
	}
}

func TestManager_SaveConfig(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("save valid config", func(t *testing.T) {
		config := createValidConfig()
		config.Name = "Saved"
		if err := manager.SaveConfig("saved", config); err != nil {
			t.Fatalf("Failed to save config: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "saved.json")); err != nil {
			t.Fatalf("Expected saved file: %v", err)
		}

		// a fresh manager reads it back from disk
		other, err := NewManager(dir)
		if err != nil {
			t.Fatal(err)
		}
		loaded, err := other.LoadConfig("saved")
		if err != nil {
			t.Fatalf("Failed to load saved config: %v", err)
		}
		if loaded.Name != "Saved" || len(loaded.Zones) != 5 {
			t.Errorf("Round trip mismatch: %+v", loaded)
		}
	})

	t.Run("reject invalid config", func(t *testing.T) {
		config := createValidConfig()
		config.World.BoundaryLimit = 1
		if err := manager.SaveConfig("tiny", config); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("reject path names", func(t *testing.T) {
		if err := manager.SaveConfig("../escape", createValidConfig()); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestManager_SetDefaultAndRefresh(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig())
	alt := createValidConfig()
	alt.Name = "Alt"
	writeConfigFile(t, dir, "alt", alt)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := manager.SetDefault("alt"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if manager.GetDefault().Name != "Alt" {
		t.Errorf("Expected default 'Alt'")
	}
	if err := manager.SetDefault("missing"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}

	before, _ := manager.LoadConfig("alt")
	if err := manager.RefreshCache(); err != nil {
		t.Fatalf("RefreshCache failed: %v", err)
	}
	after, _ := manager.LoadConfig("alt")
	if before == after {
		t.Error("Expected a fresh config after refresh")
	}
	if manager.GetDefault().Name != "Test World" {
		t.Errorf("Expected classic to be default again, got %s", manager.GetDefault().Name)
	}
}
