package util

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const Name = "notabene"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host     string
		HttpPort int    `yaml:"httpPort"`
		Domain   string `yaml:"domain"`
		DbFile   string `yaml:"dbFile"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Info("Config file not found, using embedded defaults", "path", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			if writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644); writeErr != nil {
				log.Warn("Could not write default config", "path", userConfigPath, "err", writeErr)
			} else {
				log.Info("Created default config file", "path", userConfigPath)
			}
		}
	}

	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if v := os.Getenv("NOTABENE_HOST"); v != "" {
		c.Conf.Host = v
	}

	if v := os.Getenv("NOTABENE_HTTPPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTABENE_HTTPPORT: %w", err)
		}
		c.Conf.HttpPort = port
	}

	if v := os.Getenv("NOTABENE_DOMAIN"); v != "" {
		c.Conf.Domain = v
	}

	if v := os.Getenv("NOTABENE_DBFILE"); v != "" {
		c.Conf.DbFile = v
	}

	if c.Conf.Domain == "" {
		return nil, fmt.Errorf("no federation domain configured")
	}

	return c, nil
}

// BaseURI returns the canonical https base of this node, without a trailing slash.
func (c *AppConfig) BaseURI() string {
	return fmt.Sprintf("https://%s", c.Conf.Domain)
}

// ActorURI returns the canonical profile URL of a local actor.
func (c *AppConfig) ActorURI(username string) string {
	return fmt.Sprintf("https://%s/users/%s", c.Conf.Domain, username)
}

// KeyID returns the public key id of a local actor.
func (c *AppConfig) KeyID(username string) string {
	return c.ActorURI(username) + "#main-key"
}

// LocalUsername maps an absolute URL back to a local actor username. The URL
// must point at this node's domain and at a /users/<name> profile path.
func (c *AppConfig) LocalUsername(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if parsed.Host != c.Conf.Domain {
		return "", false
	}
	rest, found := strings.CutPrefix(parsed.Path, "/users/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// IsLocalURI reports whether an arbitrary URL belongs to this node's namespace.
func (c *AppConfig) IsLocalURI(rawURL string) bool {
	return strings.HasPrefix(rawURL, c.BaseURI())
}
