package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix marks environment variables read into the configuration.
// AUTH_AUTH__SIGNING_KEY maps to auth.signing_key.
const EnvPrefix = "AUTH_"

const delim = "."

// Load builds the configuration from, in increasing priority: defaults, an
// optional yaml or json file, a .env file, AUTH_ environment variables and
// command line flags.
func Load(args []string) (*BaseConfig, error) {
	fset := NewFlagSet()
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	envFile, _ := fset.GetString("env-file")
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	k := koanf.New(delim)

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path, _ := fset.GetString("config"); path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := k.Load(confmap.Provider(EnvMap(os.Environ()), delim), nil); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	if err := k.Load(posflag.Provider(fset, delim, k), nil); err != nil {
		return nil, fmt.Errorf("config flags: %w", err)
	}

	cfg := &BaseConfig{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return cfg, nil
}

// NewFlagSet returns the flags Load understands. Flag names match config
// keys so they can be layered with posflag.
func NewFlagSet() *pflag.FlagSet {
	fset := pflag.NewFlagSet("go-cookie-auth", pflag.ContinueOnError)
	fset.String("config", "", "path to a yaml or json config file")
	fset.String("env-file", ".env", "path to a dotenv file")
	fset.String("server.address", "", "listen address")
	fset.String("persistence.driver", "", "database driver: sqlite or postgres")
	fset.String("persistence.dsn", "", "database connection string")
	fset.Bool("app.debug", false, "enable debug output")
	fset.String("app.log_level", "", "log level: debug, info, warn, error")
	return fset
}

// EnvMap turns AUTH_ prefixed KEY=value pairs into config keys. A double
// underscore separates sections.
func EnvMap(environ []string) map[string]any {
	out := map[string]any{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}

		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		key = strings.ReplaceAll(key, "__", delim)
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config env file %s: %w", path, err)
	}

	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("config file %s: unsupported format", path)
}
