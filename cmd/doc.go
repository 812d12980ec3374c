// Package cmd implements the command-line interface for the wirekv
// key-value store. It provides a hierarchical command structure with
// operations for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the wirekv server
//   - client: Commands for key-value operations and an interactive session
//   - bench: A performance testing tool for running servers
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See wirekv -help for a list of all commands.
package cmd
