// Package config handles loading and validating the catalog configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables, including the bare names the
//     field agents' deployment exports (MONGO_URL, DB, CLEANUP_THRESHOLD, ...)
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables rather than committed to the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	sweeper := catalog.NewSweeper(reg, cfg.StalenessThreshold(), cfg.SweepInterval())
package config
