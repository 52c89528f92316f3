package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// initConfig decodes a configuration file into target, picking the decoder by file suffix.
func initConfig(file *os.File, target any) error {
	switch {
	case strings.HasSuffix(file.Name(), ".toml"):
		_, err := toml.NewDecoder(file).Decode(target)
		return err
	case strings.HasSuffix(file.Name(), ".yaml"), strings.HasSuffix(file.Name(), ".yml"):
		return yaml.NewDecoder(file).Decode(target)
	case strings.HasSuffix(file.Name(), ".json"):
		return json.NewDecoder(file).Decode(target)
	}
	return fmt.Errorf("unknown config format type: %s. Use .toml, .yaml or .json suffix in filename", file.Name())
}
