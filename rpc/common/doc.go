// Package common provides core data structures and utilities shared across
// the rpc packages of the chain store. It defines the wire message,
// configuration structures and the logger setup used by other packages.
//
// The package focuses on:
//   - Message protocol definition for inter-component communication
//   - Configuration structures for client and server components
//   - Logger backends (zap, logrus) integrated with Dragonboat
//   - Utilities for Dragonboat (RAFT) integration
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between components,
//     with a flexible structure that adapts to different operation types.
//     Chains are carried in their binary form (chain.Encode), store errors keep
//     their return code (ErrCode) across the hop.
//
//   - MessageType: Enumeration defining all supported operation types in the
//     system, categorized into chain operations, management, lock operations,
//     and control messages.
//
//   - ServerConfig: Configuration for server nodes, including shards, storage
//     engine, RAFT parameters, redis settings, transport and logging.
//     Provides utilities for converting to Dragonboat-specific configurations.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - InitLoggers: Installs a zap or logrus backed logger factory for all
//     Dragonboat and dChain loggers.
package common
