//go:build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPropertyValidConfigsAlwaysPassValidation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	logLevels := []string{"debug", "info", "warn", "error"}
	logFormats := []string{"json", "console"}

	properties.Property("any default_k <= max_k <= 100 config validates", prop.ForAll(
		func(defaultK, maxK int, levelIdx, formatIdx int) bool {
			cfg := NewConfig()
			cfg.LogLevel = logLevels[levelIdx%len(logLevels)]
			cfg.LogFormat = logFormats[formatIdx%len(logFormats)]
			cfg.DefaultK = defaultK
			cfg.MaxK = maxK
			return cfg.Validate() == nil
		},
		gen.IntRange(1, 50),
		gen.IntRange(50, 100),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	))

	properties.Property("default_k greater than max_k always fails validation", prop.ForAll(
		func(maxK, delta int) bool {
			cfg := NewConfig()
			cfg.MaxK = maxK
			cfg.DefaultK = maxK + delta
			return cfg.Validate() != nil
		},
		gen.IntRange(1, 90),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
