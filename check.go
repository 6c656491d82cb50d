package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/fieldsync/game/config"
	"github.com/wricardo/mcp-training/fieldsync/game/engine"
)

// maxObstacleCoverage is the largest share of the field obstacles may cover
// before a preset is rejected
const maxObstacleCoverage = 0.6

// ValidationResult captures the outcome of validating a single configuration.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// checkPresetDir validates every preset file in dir, sorted by name
func checkPresetDir(dir string) []ValidationResult {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		cfg, err := config.Load(file)
		if err != nil {
			results = append(results, ValidationResult{
				File:   filepath.Base(file),
				Errors: []string{fmt.Sprintf("Failed to load: %v", err)},
			})
			continue
		}
		results = append(results, checkConfig(filepath.Base(file), cfg))
	}
	return results
}

// checkConfig runs Validate, which also rejects bots that would outrun wall
// containment and obstacles larger than the field, then checks that
// obstacles leave enough free space.
func checkConfig(name string, cfg *config.Config) ValidationResult {
	result := ValidationResult{
		File:   name,
		Valid:  true,
		Errors: []string{},
	}

	if err := cfg.Validate(); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Bot speed: %d (field %d)", cfg.BotMaxSpeed, cfg.FieldSize))

	coverage := obstacleCoverage(cfg)
	if coverage > maxObstacleCoverage {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("Obstacles cover %.0f%% of the field (limit %.0f%%)", coverage*100, maxObstacleCoverage*100))
	} else {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Obstacle coverage: %.1f%%", coverage*100))
	}

	if int64(cfg.BotCount) > int64(cfg.FieldSize)*int64(cfg.FieldSize) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("bot_count %d does not fit in the field", cfg.BotCount))
	} else {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Bots: %d", cfg.BotCount))
	}

	return result
}

// obstacleCoverage estimates the share of the field covered by obstacles by
// sampling a grid over a generated layout. Configurations without a seed are
// measured with a fixed one.
func obstacleCoverage(cfg *config.Config) float64 {
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewPCG(seed, 1))
	boxes := engine.GenerateObstacles(rng, cfg.FieldSize, cfg.ObstacleCount, cfg.ObstacleMinSize, cfg.ObstacleMaxSize)
	if len(boxes) == 0 {
		return 0
	}

	const samples = 200
	step := cfg.FieldSize / samples
	if step < 1 {
		step = 1
	}

	covered, total := 0, 0
	for y := int32(0); y < cfg.FieldSize; y += step {
		for x := int32(0); x < cfg.FieldSize; x += step {
			total++
			p := engine.Vector{X: x, Y: y}
			for _, b := range boxes {
				if b.Contains(p) {
					covered++
					break
				}
			}
		}
	}
	return float64(covered) / float64(total)
}

// printResults writes a concise report and reports whether all results are valid
func printResults(w io.Writer, results []ValidationResult) bool {
	if w == nil {
		w = os.Stdout
	}

	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Errors {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Fprintln(w, "  ❌ "+err)
				}
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid
}
