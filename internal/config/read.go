package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// CLIPSTASH_MONITOR_POLL_INTERVAL for monitor.poll_interval.
const EnvPrefix = "CLIPSTASH"

// Read loads a TOML file into v and enables environment overrides. With
// an explicit path the file must exist; otherwise name is searched for
// in ConfigDirs and a missing file is not an error.
//
// Precedence (lowest to highest): defaults, config file, env vars, flags.
func Read(v *viper.Viper, explicit, name string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		v.SetConfigType("toml")
	} else {
		v.SetConfigName(name)
		v.SetConfigType("toml")
		for _, dir := range ConfigDirs() {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
