// Package logging provides file-based logging with rotation for memctx.
// The memctx CLI logs to ~/.memctx/logs/server.log: at info level by
// default, and at debug level when the --debug flag is set.
//
// The CLI does not copy log lines to stderr.
package logging
