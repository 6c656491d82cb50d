// Package config provides world configuration for fieldsync.
//
// The config package handles:
//   - Reference defaults (2000x2000 field, 50 obstacles, 15 bots, 30ms ticks)
//   - Loading single configuration files in JSON or YAML
//   - Named presets stored in a configs directory
//   - Validation of values the server cannot run with
//
// Configuration Format:
//
// Files use snake_case keys. Keys missing from a file keep their default
// values, so a preset only needs to list what it changes:
//
//	name: dense
//	description: Crowded field for collision testing
//	obstacle_count: 200
//	bot_count: 60
//
// Usage:
//
//	cfg, err := config.Load("configs/dense.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Or through the preset manager
//	manager, err := config.NewManager("configs")
//	cfg, err = manager.LoadConfig("dense")
//	presets, err := manager.ListConfigs()
//
// The preset named "classic" becomes the manager's default when present;
// otherwise Default() is used.
package config
