package cache

import "fmt"

// Open creates a Store for the given driver and DSN.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", driver)
	}
}
