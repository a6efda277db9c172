// Package log provides the scanner's slog setup.
//
// Every logger is built on SecureHandler, which cleans attribute values
// before they reach the output:
//   - values under credential-like keys (password, secret, token, salt) are
//     redacted, as is the password part of proxy URLs;
//   - control characters are escaped, since banners are attacker-controlled
//     and may contain newlines or terminal escape sequences;
//   - values longer than MaxValueLen are truncated.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Warn("skipping invalid target line", "line", 12, "error", err)
//
//	// Or set as default logger
//	slog.SetDefault(logger)
package log
