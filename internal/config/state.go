package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// State is what a terminal remembers between runs: the registration it
// made last time.
type State struct {
	Name string `mapstructure:"name"`
	Role string `mapstructure:"role"`
}

// LoadState returns nil, nil when nothing is cached yet.
func LoadState(path string) (*State, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	var st State
	if err := v.Unmarshal(&st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	if st.Name == "" && st.Role == "" {
		return nil, nil
	}
	return &st, nil
}

func SaveState(path string, st State) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("name", st.Name)
	v.Set("role", st.Role)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write state %s: %w", path, err)
	}
	return nil
}

func ClearState(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}
