package config

import (
	"fmt"
	"time"

	"github.com/dkeye/FrontDesk/internal/domain"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	MediaMicrophone = "microphone"
	MediaSilence    = "silence"
)

type Terminal struct {
	// ServerURL is the signaling websocket; empty means discover via mDNS.
	ServerURL string `mapstructure:"server_url"`
	Name      string `mapstructure:"name"`
	Role      string `mapstructure:"role"`
	LogLevel  string `mapstructure:"log_level"`
	StateFile string `mapstructure:"state_file"`
	// Reset forgets the cached registration before starting.
	Reset bool `mapstructure:"reset"`

	Media      string   `mapstructure:"media"`
	ICEServers []string `mapstructure:"ice_servers"`

	PendingTimeout     time.Duration `mapstructure:"pending_timeout"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	CandidateBuffer    int           `mapstructure:"candidate_buffer"`
	DiscoverTimeout    time.Duration `mapstructure:"discover_timeout"`
}

func LoadTerminal(args []string) (*Terminal, *viper.Viper, error) {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("state_file", "frontdesk-terminal.yaml")
	v.SetDefault("media", MediaMicrophone)
	v.SetDefault("ice_servers", []string{})
	v.SetDefault("pending_timeout", "30s")
	v.SetDefault("negotiation_timeout", "20s")
	v.SetDefault("candidate_buffer", 32)
	v.SetDefault("discover_timeout", "5s")

	flags := pflag.NewFlagSet("terminal", pflag.ContinueOnError)
	flags.String("server", "", "signaling url, e.g. ws://desk.local:8080/api/ws/signal (empty: mDNS)")
	flags.String("name", "", "room or desk slug to register as")
	flags.String("role", "", "guest or receptionist")
	flags.String("log-level", "info", "log level")
	flags.String("state", "frontdesk-terminal.yaml", "registration cache file")
	flags.String("media", MediaMicrophone, "audio source (microphone|silence)")
	flags.Bool("reset", false, "forget the cached registration")

	err := load(v, "terminal", flags, args, []flagBinding{
		{"server_url", "server"},
		{"name", "name"},
		{"role", "role"},
		{"log_level", "log-level"},
		{"state_file", "state"},
		{"media", "media"},
		{"reset", "reset"},
	})
	if err != nil {
		return nil, nil, err
	}

	var cfg Terminal
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	switch cfg.Media {
	case MediaMicrophone, MediaSilence:
	default:
		return nil, nil, fmt.Errorf("unknown media source %q", cfg.Media)
	}
	return &cfg, v, nil
}

// Registration resolves name and role: explicit config wins, then the state
// cache. Both must end up set.
func (t *Terminal) Registration(cached *State) (string, domain.Role, error) {
	name, role := t.Name, t.Role
	if cached != nil {
		if name == "" {
			name = cached.Name
		}
		if role == "" {
			role = cached.Role
		}
	}
	if err := domain.ValidateName(name); err != nil {
		return "", "", fmt.Errorf("terminal name: %w", err)
	}
	r, err := domain.ParseRole(role)
	if err != nil {
		return "", "", err
	}
	return name, r, nil
}
