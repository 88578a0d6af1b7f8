// Package config handles loading and validating Armlink configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with ARMLINK_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load(config.Path())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Hub.Sensors)
package config
