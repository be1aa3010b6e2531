// Package config loads heapctl's YAML configuration through viper,
// starting from defaults that the file overrides.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is heapctl's full configuration: where the heap's files live and
// how the buffer pool and replacer are sized.
type Config struct {
	Heap struct {
		Dir  string `mapstructure:"dir"`
		Name string `mapstructure:"name"`
	} `mapstructure:"heap"`

	BufferPool struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"buffer_pool"`

	Replacer struct {
		K int `mapstructure:"k"`
	} `mapstructure:"replacer"`
}

// Default returns the configuration heapctl runs with when no config file
// is given.
func Default() Config {
	var cfg Config
	cfg.Heap.Dir = "./data"
	cfg.Heap.Name = "heap"
	cfg.BufferPool.Capacity = 128
	cfg.Replacer.K = 2
	return cfg
}

// Load reads a YAML file at path into a Config, starting from Default()
// so a partial file only overrides what it names.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}
