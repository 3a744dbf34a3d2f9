// internal/config/database.go
package config

import (
	"fmt"
)

// DSN returns DATABASE_URL when set, otherwise a keyword DSN built from the
// DB_* fields. Sessions run in UTC so daily commission totals line up.
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}
