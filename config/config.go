// Package config holds the parameters of a simulation run. A Config value is
// passed explicitly to every component that needs it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ElemSize is the size of one field element in bytes.
const ElemSize = 8

// ArchConfig describes the accelerator.
type ArchConfig struct {
	ReadBufSizeKB  int     `yaml:"rdbuf_sz_kb"`
	WriteBufSizeKB int     `yaml:"wrbuf_sz_kb"`
	ActiveBufFrac  float64 `yaml:"active_buf_frac"`
	MVL            int     `yaml:"mvl"` // max vector length of a PE
	NumTiles       int     `yaml:"num_tiles"`
	ArrayLength    int     `yaml:"array_length"`
}

// ActiveBufSize returns the part of the read buffer, in KiB, that holds the
// data of one stage.
func (c ArchConfig) ActiveBufSize() int {
	return int(c.ActiveBufFrac * float64(c.ReadBufSizeKB))
}

// NumElems returns how many elements fit in the active buffer.
func (c ArchConfig) NumElems() int {
	return c.ActiveBufSize() * 1024 / ElemSize
}

// NumPEs returns the number of processing elements.
func (c ArchConfig) NumPEs() int {
	return c.NumTiles * c.ArrayLength * c.ArrayLength
}

// EnableConfig switches kernel families on or off. A disabled kernel
// produces no traffic.
type EnableConfig struct {
	FFT   bool `yaml:"fft"`
	Hash  bool `yaml:"hash"`
	Other bool `yaml:"other"`
}

// RAMConfig tells where the request trace goes and how to run the RAM
// timing simulator on it.
type RAMConfig struct {
	TraceDir       string `yaml:"trace_dir"`
	Name           string `yaml:"name"`
	ExecutablePath string `yaml:"executable_path"`
	ConfigPath     string `yaml:"config_path"`
	BurstLength    int    `yaml:"burst_length"`
	TextOutput     bool   `yaml:"text_output"`
}

// MemoryConfig sizes the simulated memory.
type MemoryConfig struct {
	SizeGB int `yaml:"size_gb"`
	Align  int `yaml:"align"`
}

// Config is the full configuration of a run.
type Config struct {
	Arch   ArchConfig   `yaml:"arch"`
	Enable EnableConfig `yaml:"enable"`
	RAM    RAMConfig    `yaml:"ram"`
	Memory MemoryConfig `yaml:"memory"`
}

// Default returns the configuration of the reference accelerator.
func Default() Config {
	return Config{
		Arch: ArchConfig{
			ReadBufSizeKB:  4096,
			WriteBufSizeKB: 4096,
			ActiveBufFrac:  0.5,
			MVL:            8,
			NumTiles:       32,
			ArrayLength:    12,
		},
		Enable: EnableConfig{
			FFT:   true,
			Hash:  true,
			Other: true,
		},
		RAM: RAMConfig{
			TraceDir:       "traces",
			Name:           "zkmemsim",
			ExecutablePath: "./thirdparty/ramulator2/build/ramulator2",
			ConfigPath:     "./configs/zkmemsim.yaml",
			BurstLength:    64,
		},
		Memory: MemoryConfig{
			SizeGB: 1024,
			Align:  64,
		},
	}
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects configurations that cannot drive a simulation.
func (c Config) Validate() error {
	var errs []error

	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	positive("arch.rdbuf_sz_kb", c.Arch.ReadBufSizeKB)
	positive("arch.wrbuf_sz_kb", c.Arch.WriteBufSizeKB)
	positive("arch.num_tiles", c.Arch.NumTiles)
	positive("arch.array_length", c.Arch.ArrayLength)
	positive("ram.burst_length", c.RAM.BurstLength)
	positive("memory.size_gb", c.Memory.SizeGB)
	positive("memory.align", c.Memory.Align)

	if c.Arch.ActiveBufFrac <= 0 || c.Arch.ActiveBufFrac > 1 {
		errs = append(errs, fmt.Errorf(
			"arch.active_buf_frac must be in (0, 1], got %g", c.Arch.ActiveBufFrac))
	}

	if c.Arch.NumElems() == 0 && len(errs) == 0 {
		errs = append(errs, errors.New("active buffer holds no element"))
	}

	if c.RAM.Name == "" {
		errs = append(errs, errors.New("ram.name must not be empty"))
	}

	return errors.Join(errs...)
}
