// Package main provides the entry point for the bannerscan CLI.
//
// bannerscan connects to many TCP services concurrently and records the
// banner each one presents. In active mode it also speaks the first step of
// the service's protocol to draw out version and capability details.
//
// Usage:
//
//	bannerscan scan --host 192.0.2.10 --port 22
//	bannerscan scan --input targets.txt --mode active
//
// See --help for all available options.
package main

// main is the entry point for bannerscan.
func main() {
	Execute()
}
