package credentials

import (
	"fmt"

	"github.com/tcriess/neowatch/config"
)

// NewStore creates the store selected by the credentials section of the configuration.
func NewStore(cfg *config.Config) (Store, error) {
	c := cfg.CredentialsConfig
	switch c.Type {
	case "", "memory":
		return NewMemoryStore(), nil

	case "buntdb":
		path := c.Path
		if path == "" {
			path = buntMemory
		}
		return NewBuntDBStore(path)

	case "sqlite", "postgres":
		if c.DSN == "" {
			return nil, fmt.Errorf("credentials type %s requires a dsn", c.Type)
		}
		return NewGormStore(c.Type, c.DSN)
	}
	return nil, fmt.Errorf("unknown credentials type %q", c.Type)
}
