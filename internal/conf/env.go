// env.go - Environment variable overrides for tapedeck
package conf

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// envBinding holds metadata for a single environment variable override.
type envBinding struct {
	EnvVar   string
	Apply    func(*Settings, string)
	Validate func(string) error
}

// getEnvBindings returns every environment variable tapedeck recognizes.
// Config-file values win unless an env var is explicitly set, matching the
// usual twelve-factor precedence: flag > env > file > default.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"TAPEDECK_API_LISTEN", func(s *Settings, v string) { s.API.Listen = v }, nil},
		{"TAPEDECK_API_KEY", func(s *Settings, v string) { s.API.APIKey = v }, nil},
		{"TAPEDECK_ENGINE_SAMPLERATE", func(s *Settings, v string) {
			if n, err := strconv.Atoi(v); err == nil {
				s.Engine.SampleRate = n
			}
		}, validateEnvPositiveInt},
		{"TAPEDECK_ENGINE_CHANNELS", func(s *Settings, v string) {
			if n, err := strconv.Atoi(v); err == nil {
				s.Engine.Channels = n
			}
		}, validateEnvPositiveInt},
		{"TAPEDECK_ENGINE_INPUT_DEVICE", func(s *Settings, v string) { s.Engine.Device.Input = v }, nil},
		{"TAPEDECK_ENGINE_OUTPUT_DEVICE", func(s *Settings, v string) { s.Engine.Device.Output = v }, nil},
		{"TAPEDECK_MQTT_BROKER", func(s *Settings, v string) { s.MQTT.Broker = v }, nil},
		{"TAPEDECK_MQTT_USERNAME", func(s *Settings, v string) { s.MQTT.Username = v }, nil},
		{"TAPEDECK_MQTT_PASSWORD", func(s *Settings, v string) { s.MQTT.Password = v }, nil},
		{"TAPEDECK_TELEMETRY_DSN", func(s *Settings, v string) { s.Telemetry.DSN = v }, nil},
		{"TAPEDECK_SESSIONSTORE_MYSQL_PASSWORD", func(s *Settings, v string) { s.SessionStore.MySQL.Password = v }, nil},
	}
}

// applyEnvOverrides applies every matching environment variable on top of
// values already unmarshaled from the config file.
func applyEnvOverrides(settings *Settings) {
	var warnings []string

	for _, binding := range getEnvBindings() {
		value, ok := os.LookupEnv(binding.EnvVar)
		if !ok || value == "" {
			continue
		}
		if binding.Validate != nil {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", binding.EnvVar, err))
				continue
			}
		}
		binding.Apply(settings, value)
	}

	for _, w := range warnings {
		log.Printf("config: ignoring invalid environment override: %s", w)
	}
}

func validateEnvPositiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}
