package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// EnvPrefix starts the name of every environment override.
const EnvPrefix = "ZKMEMSIM_"

type envBinding struct {
	name  string
	apply func(c *Config, v string) error
}

func intBinding(name string, field func(c *Config) *int) envBinding {
	return envBinding{name: name, apply: func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}

		*field(c) = n

		return nil
	}}
}

func boolBinding(name string, field func(c *Config) *bool) envBinding {
	return envBinding{name: name, apply: func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}

		*field(c) = b

		return nil
	}}
}

func stringBinding(name string, field func(c *Config) *string) envBinding {
	return envBinding{name: name, apply: func(c *Config, v string) error {
		*field(c) = v
		return nil
	}}
}

var envBindings = []envBinding{
	intBinding("RDBUF_SZ_KB", func(c *Config) *int { return &c.Arch.ReadBufSizeKB }),
	intBinding("WRBUF_SZ_KB", func(c *Config) *int { return &c.Arch.WriteBufSizeKB }),
	{name: "ACTIVE_BUF_FRAC", apply: func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}

		c.Arch.ActiveBufFrac = f

		return nil
	}},
	intBinding("MVL", func(c *Config) *int { return &c.Arch.MVL }),
	intBinding("NUM_TILES", func(c *Config) *int { return &c.Arch.NumTiles }),
	intBinding("ARRAY_LENGTH", func(c *Config) *int { return &c.Arch.ArrayLength }),
	boolBinding("ENABLE_FFT", func(c *Config) *bool { return &c.Enable.FFT }),
	boolBinding("ENABLE_HASH", func(c *Config) *bool { return &c.Enable.Hash }),
	boolBinding("ENABLE_OTHER", func(c *Config) *bool { return &c.Enable.Other }),
	stringBinding("TRACE_DIR", func(c *Config) *string { return &c.RAM.TraceDir }),
	stringBinding("TRACE_NAME", func(c *Config) *string { return &c.RAM.Name }),
	stringBinding("RAMSIM_EXECUTABLE", func(c *Config) *string { return &c.RAM.ExecutablePath }),
	stringBinding("RAMSIM_CONFIG", func(c *Config) *string { return &c.RAM.ConfigPath }),
	boolBinding("TEXT_OUTPUT", func(c *Config) *bool { return &c.RAM.TextOutput }),
	intBinding("MEMORY_SIZE_GB", func(c *Config) *int { return &c.Memory.SizeGB }),
	intBinding("MEMORY_ALIGN", func(c *Config) *int { return &c.Memory.Align }),
}

// ApplyEnv loads the given dotenv files, if they exist, into the process
// environment and then applies every ZKMEMSIM_* override to c. Variables
// already set in the environment win over the dotenv files.
func (c *Config) ApplyEnv(dotenvFiles ...string) error {
	for _, f := range dotenvFiles {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			logrus.Debugf("no dotenv file %s", f)
			continue
		}

		if err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	for _, b := range envBindings {
		v, ok := os.LookupEnv(EnvPrefix + b.name)
		if !ok {
			continue
		}

		if err := b.apply(c, v); err != nil {
			return fmt.Errorf("%s%s=%q: %w", EnvPrefix, b.name, v, err)
		}

		logrus.Debugf("config override %s%s=%s", EnvPrefix, b.name, v)
	}

	return nil
}
