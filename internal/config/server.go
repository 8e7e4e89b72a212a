package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type RoomSeed struct {
	Slug        string `mapstructure:"slug"`
	Name        string `mapstructure:"name"`
	Floor       int    `mapstructure:"floor"`
	Fingerprint string `mapstructure:"fingerprint"`
}

type ReceptionistSeed struct {
	Slug string `mapstructure:"slug"`
	Name string `mapstructure:"name"`
}

type Server struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	DBPath    string `mapstructure:"db_path"`
	QueueSize int    `mapstructure:"queue_size"`
	// InitiateLimit initiates per InitiateWindow per sender.
	InitiateLimit  int           `mapstructure:"initiate_limit"`
	InitiateWindow time.Duration `mapstructure:"initiate_window"`

	MDNS     bool   `mapstructure:"mdns"`
	Instance string `mapstructure:"instance"`

	Rooms         []RoomSeed         `mapstructure:"rooms"`
	Receptionists []ReceptionistSeed `mapstructure:"receptionists"`
}

// LoadServer builds the server configuration from file, env and args. The
// returned viper instance can be watched for changes.
func LoadServer(args []string) (*Server, *viper.Viper, error) {
	v := viper.New()
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_path", "frontdesk.db")
	v.SetDefault("queue_size", 32)
	v.SetDefault("initiate_limit", 5)
	v.SetDefault("initiate_window", "10s")
	v.SetDefault("mdns", true)
	v.SetDefault("instance", "FrontDesk")

	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags.Int("port", 8080, "listen port")
	flags.String("mode", "release", "gin mode (debug|release|test)")
	flags.String("log-level", "info", "log level")
	flags.String("db", "frontdesk.db", "SQLite directory database")
	flags.Bool("mdns", true, "advertise on the LAN via mDNS")

	err := load(v, "server", flags, args, []flagBinding{
		{"port", "port"},
		{"mode", "mode"},
		{"log_level", "log-level"},
		{"db_path", "db"},
		{"mdns", "mdns"},
	})
	if err != nil {
		return nil, nil, err
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return &cfg, v, nil
}
