// Package startup handles environment configuration, directory
// validation, and structured startup/shutdown logging.
package startup
