package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func createValidConfig() *Config {
	cfg := Default()
	cfg.Name = "Test Config"
	cfg.Description = "Test configuration"
	cfg.FieldSize = 500
	cfg.ObstacleCount = 10
	cfg.BotCount = 3
	return cfg
}

func writeConfigFile(t *testing.T, dir, name string, cfg *Config) {
	t.Helper()

	filename := name
	if filepath.Ext(filename) == "" {
		filename = name + ".json"
	}

	data, err := Marshal(cfg, filepath.Ext(filename))
	if err != nil {
		t.Fatalf("Failed to marshal config: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()

		classic := createValidConfig()
		classic.Name = "Classic"
		writeConfigFile(t, dir, "classic.yaml", classic)

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if got := manager.GetDefault().Name; got != "Classic" {
			t.Errorf("Expected default config 'Classic', got '%s'", got)
		}
	})

	t.Run("non-existent directory", func(t *testing.T) {
		_, err := NewManager("/non/existent/path")
		if err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("missing default preset", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatalf("NewManager should succeed without preset files, got error: %v", err)
		}

		cfg := manager.GetDefault()
		if cfg == nil {
			t.Fatal("Expected default config to be available")
		}
		if cfg.FieldSize != Default().FieldSize {
			t.Errorf("Expected built-in default field size, got %d", cfg.FieldSize)
		}
	})
}

func TestManager_LoadConfig(t *testing.T) {
	dir := t.TempDir()

	dense := createValidConfig()
	dense.Name = "Dense"
	dense.ObstacleCount = 200
	writeConfigFile(t, dir, "dense", dense)

	arena := createValidConfig()
	arena.Name = "Arena"
	arena.BotCount = 40
	writeConfigFile(t, dir, "arena.yml", arena)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("load existing config", func(t *testing.T) {
		cfg, err := manager.LoadConfig("dense")
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		if cfg.Name != "Dense" {
			t.Errorf("Expected config name 'Dense', got '%s'", cfg.Name)
		}
		if cfg.ObstacleCount != 200 {
			t.Errorf("Expected 200 obstacles, got %d", cfg.ObstacleCount)
		}
	})

	t.Run("load with extension", func(t *testing.T) {
		cfg, err := manager.LoadConfig("dense.json")
		if err != nil {
			t.Fatalf("Failed to load config with extension: %v", err)
		}
		if cfg.Name != "Dense" {
			t.Errorf("Expected config name 'Dense', got '%s'", cfg.Name)
		}
	})

	t.Run("load yaml preset", func(t *testing.T) {
		cfg, err := manager.LoadConfig("arena")
		if err != nil {
			t.Fatalf("Failed to load yaml config: %v", err)
		}
		if cfg.BotCount != 40 {
			t.Errorf("Expected 40 bots, got %d", cfg.BotCount)
		}
	})

	t.Run("cached copies are independent", func(t *testing.T) {
		first, _ := manager.LoadConfig("dense")
		first.ObstacleCount = 1

		second, err := manager.LoadConfig("dense")
		if err != nil {
			t.Fatalf("Failed to load config from cache: %v", err)
		}
		if second.ObstacleCount != 200 {
			t.Errorf("Cached config was modified through a returned copy: %d", second.ObstacleCount)
		}
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := manager.LoadConfig("non-existent")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("Expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("load invalid config", func(t *testing.T) {
		invalidData := []byte(`{"field_size": -5}`)
		if err := os.WriteFile(filepath.Join(dir, "invalid.json"), invalidData, 0644); err != nil {
			t.Fatalf("Failed to write invalid config: %v", err)
		}

		_, err := manager.LoadConfig("invalid")
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("load malformed JSON", func(t *testing.T) {
		malformedData := []byte(`{"name": "Malformed", invalid json}`)
		if err := os.WriteFile(filepath.Join(dir, "malformed.json"), malformedData, 0644); err != nil {
			t.Fatalf("Failed to write malformed config: %v", err)
		}

		_, err := manager.LoadConfig("malformed")
		if err == nil {
			t.Error("Expected error for malformed JSON")
		}
	})
}

func TestManager_ListConfigs(t *testing.T) {
	dir := t.TempDir()

	presets := []struct {
		filename string
		name     string
	}{
		{"classic.yaml", "Classic"},
		{"dense.json", "Dense"},
		{"arena.yml", "Arena"},
	}

	for _, p := range presets {
		cfg := createValidConfig()
		cfg.Name = p.name
		writeConfigFile(t, dir, p.filename, cfg)
	}

	// Ignored: unknown extension and invalid preset
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("readme"), 0644)
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"bot_count": 100000}`), 0644)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	infos, err := manager.ListConfigs()
	if err != nil {
		t.Fatalf("Failed to list configs: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 configs, got %d", len(infos))
	}

	wantIDs := []string{"arena", "classic", "dense"}
	for i, id := range wantIDs {
		if infos[i].ID != id {
			t.Errorf("infos[%d].ID = %s, expected %s", i, infos[i].ID, id)
		}
	}
	if infos[1].Name != "Classic" || infos[1].FieldSize != 500 {
		t.Errorf("Unexpected info: %+v", infos[1])
	}
}

func TestManager_SaveAndRefresh(t *testing.T) {
	dir := t.TempDir()

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	cfg := createValidConfig()
	cfg.Name = "Classic"
	if err := manager.SaveConfig("classic", cfg); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "classic.yaml")); err != nil {
		t.Errorf("Expected classic.yaml to be written: %v", err)
	}

	if got := manager.GetDefault().Name; got == "Classic" {
		t.Error("Default should not change before refresh")
	}

	if err := manager.RefreshCache(); err != nil {
		t.Fatalf("Failed to refresh cache: %v", err)
	}
	if got := manager.GetDefault().Name; got != "Classic" {
		t.Errorf("Expected default 'Classic' after refresh, got '%s'", got)
	}

	t.Run("invalid config rejected", func(t *testing.T) {
		bad := createValidConfig()
		bad.BroadcastIntervalMs = 0
		if err := manager.SaveConfig("bad", bad); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("set default", func(t *testing.T) {
		fast := createValidConfig()
		fast.Name = "Fast"
		fast.BroadcastIntervalMs = 10
		if err := manager.SaveConfig("fast.json", fast); err != nil {
			t.Fatalf("Failed to save config: %v", err)
		}
		if err := manager.SetDefault("fast"); err != nil {
			t.Fatalf("SetDefault failed: %v", err)
		}
		if got := manager.GetDefault().BroadcastIntervalMs; got != 10 {
			t.Errorf("Expected default interval 10, got %d", got)
		}
	})
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()

	for i := 1; i <= 5; i++ {
		cfg := createValidConfig()
		cfg.Name = fmt.Sprintf("Config%d", i)
		writeConfigFile(t, dir, fmt.Sprintf("config%d", i), cfg)
	}

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("config%d", (id%5)+1)
			cfg, err := manager.LoadConfig(name)
			if err != nil {
				errs <- err
				return
			}
			if cfg.Name != fmt.Sprintf("Config%d", (id%5)+1) {
				errs <- fmt.Errorf("unexpected config %s for %s", cfg.Name, name)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
