package common

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,  // = c.RTTMillisecond * 10
		HeartbeatRTT:       heartbeatRTTFactor, // = c.RTTMillisecond * 1
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// --------------------------------------------------------------------------
// Shared transport configuration
// --------------------------------------------------------------------------

// SocketConf holds the socket buffer settings of stream transports (tcp, unix)
type SocketConf struct {
	WriteBufferSize int // bytes, 0 = os default
	ReadBufferSize  int // bytes, 0 = os default
}

// TCPConf holds tcp specific settings
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int // 0 = disabled
	TCPLingerSec    int // < 0 = os default
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	ShardTypeLocalIStore        ServerShardType = "local store"
	ShardTypeRemoteIStore       ServerShardType = "remote store"
	ShardTypeRedisIStore        ServerShardType = "redis store"
	ShardTypeLocalILockManager  ServerShardType = "local lock manager"
	ShardTypeRemoteILockManager ServerShardType = "remote lock manager"
	ShardTypeRedisILockManager  ServerShardType = "redis lock manager"
)

// IsLockManager reports whether shards of this type serve the lock manager protocol
func (t ServerShardType) IsLockManager() bool {
	return t == ShardTypeLocalILockManager || t == ShardTypeRemoteILockManager || t == ShardTypeRedisILockManager
}

// IsRemote reports whether shards of this type are replicated with raft
func (t ServerShardType) IsRemote() bool {
	return t == ShardTypeRemoteIStore || t == ShardTypeRemoteILockManager
}

// IsRedis reports whether shards of this type live in redis
func (t ServerShardType) IsRedis() bool {
	return t == ShardTypeRedisIStore || t == ShardTypeRedisILockManager
}

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type of the store (and protocol) of the shard
	Type ServerShardType
}

// ServerTransportConfig holds the settings of the server transport
type ServerTransportConfig struct {
	// Endpoint the transport listens on (host:port or socket path)
	Endpoint string
	// WorkersPerConn limits the concurrent requests of one connection (stream transports)
	WorkersPerConn int
	SocketConf
	TCPConf
}

// RedisConfig holds the connection settings for redis shards
type RedisConfig struct {
	Addrs     []string
	Password  string
	DB        int
	Namespace string
}

// ServerConfig holds all configuration parameters for the RAFT cluster.
type ServerConfig struct {
	// whether to start the server in single node mode or in a cluster
	Shards []ServerShard

	// Dragonboat parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// Storage engine of local and remote shards (maple, pebble, bounded)
	Engine string

	// Redis shards
	Redis RedisConfig

	// remote store parameters
	TimeoutSecond int64

	// Transport settings
	Transport ServerTransportConfig

	// Address of the metrics listener, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel   string
	LogBackend string
	LogFormat  string
}

// HasRemoteShard checks if the configuration contains any remote shards
func (c *ServerConfig) HasRemoteShard() bool {
	for _, shard := range c.Shards {
		if shard.Type.IsRemote() {
			return true
		}
	}
	return false
}

// HasRedisShard checks if the configuration contains any redis shards
func (c *ServerConfig) HasRedisShard() bool {
	for _, shard := range c.Shards {
		if shard.Type.IsRedis() {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Metrics Endpoint", c.MetricsEndpoint)

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	addField("Log Backend", c.LogBackend)
	addField("Log Format", c.LogFormat)

	// Shards
	addSection("Shards")
	addField("Engine", c.Engine)
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	if c.HasRedisShard() {
		addSection("Redis")
		addField("Addresses", strings.Join(c.Redis.Addrs, ", "))
		addField("DB", strconv.Itoa(c.Redis.DB))
		addField("Namespace", c.Redis.Namespace)
	}

	if c.HasRemoteShard() {
		// Node Identity
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		// RAFT parameters
		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Check Quorum", fmt.Sprintf("%t", true))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))

		// Storage
		addSection("Storage")
		addField("Data Directory", c.DataDir)

		addSection("Cluster")
		sb.WriteString("  Initial Cluster Members:\n")

		// Sort keys for consistent output
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the settings of the client transport
type ClientTransportConfig struct {
	// RetryCount is the number of send attempts. A retried send of a write
	// can be applied twice if only the response was lost.
	RetryCount             int
	Endpoints              []string
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
