package metrics

import "database/sql"

// UpdateDBPoolStats updates storage connection pool metrics from sql.DBStats.
func UpdateDBPoolStats(driver string, stats sql.DBStats) {
	DBConnectionPoolSize.WithLabelValues(driver, "active").Set(float64(stats.InUse))
	DBConnectionPoolSize.WithLabelValues(driver, "idle").Set(float64(stats.Idle))
	DBConnectionPoolSize.WithLabelValues(driver, "max").Set(float64(stats.MaxOpenConnections))
}
