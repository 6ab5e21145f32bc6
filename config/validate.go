package config

import (
	"fmt"

	"stakevault/storage"
)

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	switch c.DBBackend {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt, storage.BackendSQLite:
	default:
		return fmt.Errorf("config: unsupported DBBackend %q", c.DBBackend)
	}
	if c.VestingPeriodSeconds == 0 {
		return fmt.Errorf("config: VestingPeriodSeconds must be positive")
	}
	if c.AssetID == "" {
		return fmt.Errorf("config: AssetID required")
	}
	if _, _, err := c.AdminAddress(); err != nil {
		return fmt.Errorf("config: invalid Admin: %w", err)
	}
	return nil
}
