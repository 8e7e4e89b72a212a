package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "FRONTDESK"

// flagBinding ties a config key to the dashed flag that overrides it.
type flagBinding struct {
	key  string
	flag string
}

// load reads config/<name>.<CONFIG_ENV>.yaml (or --config), then .env,
// environment (FRONTDESK_*) and flags, in rising precedence.
func load(v *viper.Viper, name string, flags *pflag.FlagSet, args []string, bindings []flagBinding) error {
	flags.String("config", "", "config file (default config/"+name+".<CONFIG_ENV>.yaml)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := loadDotEnv(); err != nil {
		return err
	}

	v.SetConfigType("yaml")
	fileName, _ := flags.GetString("config")
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/%s.%s.yaml", name, env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		if err := v.BindPFlag(b.key, flags.Lookup(b.flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("loaded config")
	}
	return nil
}

// loadDotEnv loads ENV_FILE when set, otherwise ./.env if present. Variables
// already in the environment win.
func loadDotEnv() error {
	file := os.Getenv("ENV_FILE")
	if file == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		file = ".env"
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
