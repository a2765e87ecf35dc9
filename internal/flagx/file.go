package flagx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadConfigFile decodes the file named by -c/-config in args into v.
// Files ending in .toml are TOML, anything else JSON. It reports false when
// no file was requested.
func LoadConfigFile(args []string, v any) (bool, error) {
	path := ConfigFile(args)
	if path == "" {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, v)
	} else {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return false, fmt.Errorf("parse config %s: %w", path, err)
	}
	return true, nil
}
