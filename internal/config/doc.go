// Package config provides the scan configuration: built-in defaults,
// validation, and the optional .bannerscan YAML file.
//
// Precedence is flags, then the config file, then the defaults. The CLI
// applies the file to NewConfig() and then copies only the flags the user
// actually set.
package config
