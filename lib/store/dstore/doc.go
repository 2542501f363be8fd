// Package dstore implements a distributed, fault-tolerant chain store using
// the Dragonboat RAFT consensus library. It provides a strongly consistent
// implementation of the store.IServerStore interface.
//
// Architecture:
//
//   - Store Client: Implements store.IServerStore. It serializes operations
//     into commands, proposes them to the RAFT shard and decodes the results.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine (ChainStateMachine)
//     that owns a db.ChainDB and applies the committed commands to it.
//
//   - Communication Protocol: Command and Query in the internal package. A
//     ReplaceAtHead command carries only the ids of the expected chain and
//     only the payloads of the update chain.
//
// Sequencing:
//
//	Element ids are assigned by the db while an entry is applied, never by the
//	proposing client. Entries are applied one after another in log order on
//	every replica, so all replicas hold identical chains with identical ids.
//	The raft log index of the last applied entry is stored as the db write
//	index. Entries at or below that index are skipped, which makes replaying
//	the log on top of a persistent engine safe.
//
// Write Operations:
//
//	Append, GetAndAppend and ReplaceAtHead follow the same flow:
//
//	1. The operation is serialized into a Command
//	2. The Command is proposed via SyncPropose
//	3. Once committed, Update applies it on every replica
//	4. The result of the local replica is returned (assigned id, prior chain
//	   or replaced flag)
//
// Read Operations:
//
//	Get uses SyncRead (linearizable). GetDBInfo uses StaleRead.
//
// Error Handling and Retries:
//
//	Only dragonboat.ErrSystemBusy is retried, since a busy shard rejects the
//	proposal before it reaches the log. A timeout has an unknown outcome (the
//	entry might still commit) and is returned to the caller without a retry.
//	A stale ReplaceAtHead is not an error.
//
// Snapshotting and Recovery:
//
//	PrepareSnapshot serializes the whole db while Update is paused, so a
//	snapshot reflects exactly the state at its log index. Chain appends are not
//	idempotent, the fuzzy snapshots that work for plain key-value stores would
//	duplicate elements when the log is replayed.
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	dbFactory := func() db.ChainDB { return maple.NewMapleDB(nil) }
//
//	err = nh.StartConcurrentReplica(
//	    clusterMembers,
//	    false,
//	    dstore.CreateStateMachineFactory(dbFactory),
//	    shardConfig)
//	if err != nil { ... }
//
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//
// Deploy with an odd number of nodes (3, 5 or 7). Operations cannot proceed
// while a majority of the replicas is unavailable.
package dstore
