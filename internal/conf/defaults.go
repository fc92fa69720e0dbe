// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// setDefaultConfig sets default values for every configuration key before
// the config file and environment overrides are applied.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	// Main
	viper.SetDefault("main.name", "tapedeck")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/engine.log")
	viper.SetDefault("main.log.rotation", string(RotationDaily))
	viper.SetDefault("main.log.maxsize", int64(100*1024*1024))

	// Engine
	viper.SetDefault("engine.samplerate", 48000)
	viper.SetDefault("engine.channels", 2)
	viper.SetDefault("engine.bufferframes", 1024)
	viper.SetDefault("engine.device.input", "")
	viper.SetDefault("engine.device.output", "")

	// Paths
	viper.SetDefault("paths.projectsdir", "projects")
	viper.SetDefault("paths.exportdir", "exports")
	viper.SetDefault("paths.tempdir", "tmp")
	viper.SetDefault("paths.recordingsdir", "recordings")

	// API
	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen", "0.0.0.0:8080")
	viper.SetDefault("api.apikey", "")
	viper.SetDefault("api.autotls", false)
	viper.SetDefault("api.log.enabled", true)
	viper.SetDefault("api.log.path", "logs/api.log")
	viper.SetDefault("api.log.rotation", string(RotationSize))
	viper.SetDefault("api.log.maxsize", int64(50*1024*1024))

	// MQTT
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "tapedeck")

	// Notification
	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")

	// Session store
	viper.SetDefault("sessionstore.driver", "sqlite")
	viper.SetDefault("sessionstore.sqlite.path", "data/sessions.db")

	// Backup
	viper.SetDefault("backup.enabled", false)

	// Security
	viper.SetDefault("security.host", "")
	viper.SetDefault("security.baseurl", "")
	viper.SetDefault("security.autotls", false)
}
