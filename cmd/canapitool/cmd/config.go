package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

const configFilename = ".canapitool.toml"

type fileConfig struct {
	Transport string  `toml:"transport"`
	Port      string  `toml:"port"`
	Baudrate  int     `toml:"baudrate"`
	Channel   int     `toml:"channel"`
	Bitrate   float64 `toml:"bitrate"`
	Listen    bool    `toml:"listen"`
	Debug     bool    `toml:"debug"`
	Library   string  `toml:"library"`
}

// loadConfigDefaults overlays ~/.canapitool.toml onto the flag defaults.
// Values given on the command line still win since the flags are parsed
// after this runs.
func loadConfigDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	path := filepath.Join(home, configFilename)
	if _, err := os.Stat(path); err != nil {
		return
	}
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		log.Printf("could not read %s: %v", path, err)
		return
	}
	if meta.IsDefined("transport") {
		setFlagDefault(flagTransport, cfg.Transport)
	}
	if meta.IsDefined("port") {
		setFlagDefault(flagPort, cfg.Port)
	}
	if meta.IsDefined("baudrate") {
		setFlagDefault(flagBaudrate, strconv.Itoa(cfg.Baudrate))
	}
	if meta.IsDefined("channel") {
		setFlagDefault(flagChannel, strconv.Itoa(cfg.Channel))
	}
	if meta.IsDefined("bitrate") {
		setFlagDefault(flagBitrate, fmt.Sprintf("%g", cfg.Bitrate))
	}
	if meta.IsDefined("listen") {
		setFlagDefault(flagListen, strconv.FormatBool(cfg.Listen))
	}
	if meta.IsDefined("debug") {
		setFlagDefault(flagDebug, strconv.FormatBool(cfg.Debug))
	}
	if meta.IsDefined("library") {
		setFlagDefault(flagLibrary, cfg.Library)
	}
}

func setFlagDefault(name, value string) {
	f := rootCmd.PersistentFlags().Lookup(name)
	if f == nil {
		return
	}
	if err := f.Value.Set(value); err != nil {
		log.Printf("invalid config value for %s: %v", name, err)
		return
	}
	f.DefValue = value
}
