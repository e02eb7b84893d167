package cli

import (
	"os"
	"strings"

	"github.com/spf13/pflag"

	"workerd/internal/config"
)

// resolveConfig merges, lowest to highest precedence: defaults, the config
// file, WORKERD_* environment variables and explicitly set flags.
func resolveConfig(path string, flags *pflag.FlagSet, lookup func(string) (string, bool)) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}
	if flags != nil {
		str := map[string]*string{
			"addr":           &cfg.Addr,
			"tokenizer-addr": &cfg.TokenizerAddr,
			"descriptors":    &cfg.DescriptorsPath,
			"metrics-dir":    &cfg.MetricsDir,
			"log-level":      &cfg.LogLevel,
			"log-format":     &cfg.LogFormat,
		}
		for name, p := range str {
			if f := flags.Lookup(name); f != nil && f.Changed {
				*p = f.Value.String()
			}
		}
		if f := flags.Lookup("cors-origins"); f != nil && f.Changed {
			cfg.CORS.Enabled = true
			cfg.CORS.AllowedOrigins = config.SplitCSV(f.Value.String())
		}
		if f := flags.Lookup("max-body-bytes"); f != nil && f.Changed {
			if n, err := flags.GetInt64("max-body-bytes"); err == nil {
				cfg.MaxBodyBytes = n
			}
		}
	}
	return cfg.WithDefaults(), nil
}

// tokenizerURL turns a listen address such as ":8101" into a base URL on
// the loopback interface.
func tokenizerURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}
