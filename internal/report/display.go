package report

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// acronyms are protocol names rendered in upper case.
var acronyms = map[string]bool{
	"ftp": true, "smtp": true, "ssh": true, "imap": true,
	"pop3": true, "mssql": true, "mqtt": true,
}

// special names that neither upper nor title case gets right.
var displayNames = map[string]string{
	"mysql":      "MySQL",
	"postgresql": "PostgreSQL",
	"mongodb":    "MongoDB",
}

// DisplayName returns the human-facing name of a protocol, e.g. "ssh" →
// "SSH", "redis" → "Redis". Casers are stateful, so each call builds its own.
func DisplayName(protocol string) string {
	if name, ok := displayNames[protocol]; ok {
		return name
	}
	if acronyms[protocol] {
		return cases.Upper(language.English).String(protocol)
	}
	return cases.Title(language.English).String(protocol)
}

// StatusLabel returns the display label of an outcome status.
func StatusLabel(status string) string {
	switch status {
	case "timed_out":
		return "Timed Out"
	case "connect_failed":
		return "Connect Failed"
	case "probe_degraded":
		return "Degraded"
	default:
		return cases.Title(language.English).String(status)
	}
}
