package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"

	reelforge "github.com/Bojan20/reelforge-standalone-sub003"
	"github.com/Bojan20/reelforge-standalone-sub003/engine"
)

// settings is the TOML settings file. Every field has a default, so running
// without a file works.
type settings struct {
	SampleRate int    `toml:"sample_rate"`
	BlockSize  int    `toml:"block_size"`
	BitDepth   int    `toml:"bit_depth"`
	LogLevel   string `toml:"log_level"`
}

type commandContext struct {
	log      *logrus.Logger
	settings settings
}

func (c *commandContext) loadSettings(path string) error {
	c.settings = settings{
		SampleRate: 44100,
		BlockSize:  512,
		BitDepth:   24,
		LogLevel:   "info",
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("could not read settings: %w", err)
		}
		if err := toml.Unmarshal(data, &c.settings); err != nil {
			return fmt.Errorf("could not parse settings: %w", err)
		}
	}
	level, err := logrus.ParseLevel(strings.ToLower(c.settings.LogLevel))
	if err != nil {
		return fmt.Errorf("bad log level %q: %w", c.settings.LogLevel, err)
	}
	c.log.SetLevel(level)
	return nil
}

func (c *commandContext) bitDepth() (reelforge.BitDepth, error) {
	switch c.settings.BitDepth {
	case 16:
		return reelforge.BitDepth16, nil
	case 24:
		return reelforge.BitDepth24, nil
	case 32:
		return reelforge.BitDepth32, nil
	}
	return 0, fmt.Errorf("bad bit depth %d, want 16, 24 or 32", c.settings.BitDepth)
}

// openProject builds an engine and loads the project at path into it.
func (c *commandContext) openProject(path string) (*engine.Engine, error) {
	e := engine.NewEngine(engine.Config{
		SampleRate: c.settings.SampleRate,
		BlockSize:  c.settings.BlockSize,
		Codec:      reelforge.WavCodec{},
		Persister:  reelforge.DiskPersister{},
		Log:        c.log,
	})
	if err := e.Load(path); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}
