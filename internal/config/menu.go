package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/ipc"
)

// Finder names the interactive picker used by the menu.
type Finder string

const (
	FinderRofi    Finder = "rofi"
	FinderDmenu   Finder = "dmenu"
	FinderSkim    Finder = "skim"
	FinderCustom  Finder = "custom"
	FinderBuiltin Finder = "builtin"
)

// ParseFinder converts a config value into a Finder.
func ParseFinder(s string) (Finder, error) {
	switch f := Finder(strings.ToLower(strings.TrimSpace(s))); f {
	case FinderRofi, FinderDmenu, FinderSkim, FinderCustom, FinderBuiltin:
		return f, nil
	case "":
		return FinderRofi, nil
	default:
		return "", fmt.Errorf("%w: unknown finder %q", ErrInvalid, s)
	}
}

// FinderTuning sizes a finder's lines and menu.
type FinderTuning struct {
	LineLength int `mapstructure:"line_length"`
	MenuLength int `mapstructure:"menu_length"`
}

// CustomFinder runs an arbitrary program as the finder.
type CustomFinder struct {
	Program string   `mapstructure:"program"`
	Args    []string `mapstructure:"args"`
}

// Menu is the menu configuration file.
type Menu struct {
	ServerHost   string       `mapstructure:"server_host"`
	ServerPort   int          `mapstructure:"server_port"`
	Socket       string       `mapstructure:"socket"`
	Finder       string       `mapstructure:"finder"`
	Rofi         FinderTuning `mapstructure:"rofi"`
	Dmenu        FinderTuning `mapstructure:"dmenu"`
	Skim         FinderTuning `mapstructure:"skim"`
	CustomFinder CustomFinder `mapstructure:"custom_finder"`
}

// DefaultMenuConfigPath is $XDG_CONFIG_HOME/clipstash/clipstash-menu.toml.
func DefaultMenuConfigPath() string {
	return filepath.Join(xdg.ConfigHome, ProjectName, MenuConfigName+".toml")
}

// SetMenuDefaults registers every menu key with its default.
func SetMenuDefaults(v *viper.Viper) {
	v.SetDefault("server_host", DefaultHost)
	v.SetDefault("server_port", DefaultPort)
	v.SetDefault("socket", ipc.DefaultSocketPath())
	v.SetDefault("finder", string(FinderRofi))
	v.SetDefault("rofi.line_length", 100)
	v.SetDefault("rofi.menu_length", 30)
	v.SetDefault("dmenu.line_length", 100)
	v.SetDefault("dmenu.menu_length", 30)
	v.SetDefault("skim.line_length", 100)
	v.SetDefault("custom_finder.program", "fzf")
	v.SetDefault("custom_finder.args", []string{})
}

// LoadMenu decodes and validates the menu configuration held by v.
func LoadMenu(v *viper.Viper) (*Menu, error) {
	var m Menu
	if err := v.Unmarshal(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := ParseFinder(m.Finder); err != nil {
		return nil, err
	}
	if m.ServerPort < 1 || m.ServerPort > 65535 {
		return nil, fmt.Errorf("%w: server_port %d out of range", ErrInvalid, m.ServerPort)
	}
	if m.CustomFinder.Program == "" {
		m.CustomFinder.Program = "fzf"
	}
	return &m, nil
}

// Tuning returns the line and menu length for f. Finders without a
// menu length report 0.
func (m *Menu) Tuning(f Finder) FinderTuning {
	switch f {
	case FinderRofi:
		return m.Rofi
	case FinderDmenu:
		return m.Dmenu
	case FinderSkim:
		return FinderTuning{LineLength: m.Skim.LineLength}
	default:
		return FinderTuning{LineLength: 100}
	}
}
