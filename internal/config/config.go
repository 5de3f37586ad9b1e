// Package config loads vtdeck's optional user configuration file, a
// git-config-style document parsed the same way cmd/vee reads
// .vee/config: section.key pairs via gcfg, with sane defaults when the
// file is absent.
package config

import (
	"os"
	"path/filepath"

	gcfg "github.com/go-git/gcfg/v2"
)

// Colors holds the default foreground/background the rasterizer paints
// default-colored emulator cells with.
type Colors struct {
	Foreground uint32
	Background uint32
}

// Nord Polar Night / Snow Storm.
const (
	defaultForeground = 0xD8DEE9
	defaultBackground = 0x2E3440
)

// Config is vtdeck's resolved runtime configuration.
type Config struct {
	Colors     Colors
	Shell      string   // login shell path
	FontSizePx int      // glyph pixel size passed to the Face
	FontPaths  []string // search list consulted for a missing-font error message
}

type fileFormat struct {
	Colors struct {
		Foreground string
		Background string
	}
	Font struct {
		SizePx int
		Path   []string
	}
	Shell struct {
		Path string
	}
}

// Default returns vtdeck's built-in configuration.
func Default() Config {
	return Config{
		Colors:     Colors{Foreground: defaultForeground, Background: defaultBackground},
		Shell:      loginShellPath(),
		FontSizePx: 20,
		FontPaths: []string{
			"/usr/share/fonts/TTF/JetBrainsMonoNerdFont-Regular.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf",
		},
	}
}

func loginShellPath() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Load reads ~/.config/vtdeck/config if present, overlaying Default().
// A missing file is not an error; a malformed one is.
func Load() (Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}
	path := filepath.Join(home, ".config", "vtdeck", "config")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	var parsed fileFormat
	if err := gcfg.ReadInto(&parsed, f); err != nil {
		return cfg, err
	}

	if v, ok := parseHex(parsed.Colors.Foreground); ok {
		cfg.Colors.Foreground = v
	}
	if v, ok := parseHex(parsed.Colors.Background); ok {
		cfg.Colors.Background = v
	}
	if parsed.Font.SizePx > 0 {
		cfg.FontSizePx = parsed.Font.SizePx
	}
	if len(parsed.Font.Path) > 0 {
		cfg.FontPaths = parsed.Font.Path
	}
	if parsed.Shell.Path != "" {
		cfg.Shell = parsed.Shell.Path
	}

	return cfg, nil
}

func parseHex(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	s = trimHexPrefix(s)
	var v uint32
	for _, c := range []byte(s) {
		var d uint32
		switch {
		case c >= '0' && c <= '9':
			d = uint32(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint32(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint32(c-'A') + 10
		default:
			return 0, false
		}
		v = v*16 + d
	}
	return v, true
}

func trimHexPrefix(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
