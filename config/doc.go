// Package config provides configuration loading and validation for the server.
//
// Configuration is loaded with the following precedence (highest to lowest):
//  1. Command-line flags (applied by the caller after Load)
//  2. Environment variables (STTT_PORT, STTT_WEBROOT, ...)
//  3. JSON config file
//  4. Built-in defaults
//
// Example usage:
//
//	cfg, err := config.Load("/etc/sttt-httpd.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
