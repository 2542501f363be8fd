// Package cmd implements the command-line interface for the dChain distributed
// chain store. It provides a hierarchical command structure with operations
// for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - chain: Commands for chain operations (get, append, get-and-append, replace-at-head, ...)
//   - lock: Commands for locking operations (acquire, release)
//   - serve: Commands for starting and configuring the dChain server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dchain -help for a list of all commands.
package cmd
