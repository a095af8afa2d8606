package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	db "oskern/debug"
	"oskern/serr"
)

const (
	KERNCONFIG = "KERNCONFIG"
)

type Config struct {
	PidMin      int    `mapstructure:"pidmin" yaml:"pidmin"`
	PidMax      int    `mapstructure:"pidmax" yaml:"pidmax"`
	OpenMax     int    `mapstructure:"openmax" yaml:"openmax"`         // hard cap on descriptors per process
	FdIncrement int    `mapstructure:"fdincrement" yaml:"fdincrement"` // descriptor table growth step
	IOChunk     int    `mapstructure:"iochunk" yaml:"iochunk"`         // kernel buffer size for read/write
	MaxThreads  int    `mapstructure:"maxthreads" yaml:"maxthreads"`
	PathMax     int    `mapstructure:"pathmax" yaml:"pathmax"`
	ArgMax      int    `mapstructure:"argmax" yaml:"argmax"`
	UserMemSize int    `mapstructure:"usermemsize" yaml:"usermemsize"`
	StackSize   int    `mapstructure:"stacksize" yaml:"stacksize"`
	Debug       string `mapstructure:"debug" yaml:"debug"`
}

func Default() *Config {
	return &Config{
		PidMin:      2,
		PidMax:      32767,
		OpenMax:     128,
		FdIncrement: 16,
		IOChunk:     512,
		MaxThreads:  1024,
		PathMax:     1024,
		ArgMax:      64 * 1024,
		UserMemSize: 1 << 20,
		StackSize:   64 * 1024,
		Debug:       os.Getenv(db.KERNDEBUG),
	}
}

// Load reads a YAML file and applies it on top of the defaults. An
// empty path falls back to $KERNCONFIG, and then to the defaults alone.
func Load(pn string) (*Config, error) {
	cfg := Default()
	if pn == "" {
		pn = os.Getenv(KERNCONFIG)
	}
	if pn == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(pn)
	if err != nil {
		return nil, serr.UxErrnoToErr(err, pn)
	}
	m := make(map[string]interface{})
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, serr.NewErrError(fmt.Errorf("config %v: %w", pn, err))
	}
	if err := decode(cfg, m); err != nil {
		return nil, err
	}
	db.DPrintf(db.CONFIG, "Load %v: %v", pn, cfg)
	return cfg, cfg.Validate()
}

// Override applies "key=value" settings, e.g. from the command line.
func Override(cfg *Config, kvs []string) error {
	m := make(map[string]interface{})
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return serr.NewErr(serr.TErrInval, kv)
		}
		m[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	if err := decode(cfg, m); err != nil {
		return err
	}
	return cfg.Validate()
}

func decode(cfg *Config, m map[string]interface{}) error {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           cfg,
	})
	if err != nil {
		return serr.NewErrError(err)
	}
	if err := dec.Decode(m); err != nil {
		return serr.NewErrError(err)
	}
	if len(md.Unused) > 0 {
		return serr.NewErr(serr.TErrInval, strings.Join(md.Unused, ","))
	}
	return nil
}

func (cfg *Config) Validate() error {
	switch {
	case cfg.PidMin < 2 || cfg.PidMax < cfg.PidMin: // pid 1 is the kernel
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("pid range [%d,%d]", cfg.PidMin, cfg.PidMax))
	case cfg.OpenMax < 3:
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("openmax %d", cfg.OpenMax))
	case cfg.FdIncrement < 1:
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("fdincrement %d", cfg.FdIncrement))
	case cfg.IOChunk < 1:
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("iochunk %d", cfg.IOChunk))
	case cfg.MaxThreads < 1:
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("maxthreads %d", cfg.MaxThreads))
	case cfg.PathMax < 2 || cfg.ArgMax < 1:
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("pathmax %d argmax %d", cfg.PathMax, cfg.ArgMax))
	case cfg.StackSize < 1 || cfg.UserMemSize <= cfg.StackSize:
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("usermemsize %d stacksize %d", cfg.UserMemSize, cfg.StackSize))
	}
	return nil
}

func (cfg *Config) String() string {
	return fmt.Sprintf("&{ pids:[%d,%d] openmax:%d fdinc:%d iochunk:%d maxthreads:%d }",
		cfg.PidMin, cfg.PidMax, cfg.OpenMax, cfg.FdIncrement, cfg.IOChunk, cfg.MaxThreads)
}
