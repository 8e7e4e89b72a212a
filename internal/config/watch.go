package config

import (
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// WatchLogLevel re-applies log_level whenever the config file is written.
// Other keys need a restart.
func WatchLogLevel(v *viper.Viper, apply func(zerolog.Level)) {
	file := v.ConfigFileUsed()
	if file == "" {
		return
	}
	if _, err := os.Stat(file); err != nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		lvl := ParseLevel(v.GetString("log_level"))
		log.Info().Str("module", "config").Str("file", e.Name).Str("log_level", lvl.String()).Msg("config changed")
		apply(lvl)
	})
	v.WatchConfig()
}
