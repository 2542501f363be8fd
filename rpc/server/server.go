package server

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/db/engines/bounded"
	"github.com/ValentinKolb/dChain/lib/db/engines/maple"
	"github.com/ValentinKolb/dChain/lib/db/engines/pebbledb"
	"github.com/ValentinKolb/dChain/lib/management"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/ValentinKolb/dChain/lib/store/dstore"
	"github.com/ValentinKolb/dChain/lib/store/lstore"
	"github.com/ValentinKolb/dChain/lib/store/proxy"
	"github.com/ValentinKolb/dChain/lib/store/rstore"
	"github.com/ValentinKolb/dChain/rpc/common"
	"github.com/ValentinKolb/dChain/rpc/serializer"
	"github.com/ValentinKolb/dChain/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates (behind a statistics proxy) and the
// adapter that handles requests for the store
type serverShard struct {
	Store   *proxy.ServerStoreProxy
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create the RPC server
	return &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		registry:   management.NewRegistry(nil),
		metrics:    newRequestMetrics(),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	registry   *management.Registry
	metrics    *requestMetrics
	nodeHost   *dragonboat.NodeHost
	closers    []io.Closer
	metricsSrv io.Closer
}

// Registry returns the statistics registry of all shards
func (s *rpcServer) Registry() *management.Registry {
	return s.registry
}

// handle decodes a request, dispatches it to the shard and encodes the response
func (s *rpcServer) handle(shardId uint64, req []byte) []byte {
	start := time.Now()
	var msg common.Message
	var respMsg *common.Message

	// Get appropriate shard
	shard, ok := s.shards.Load(shardId)

	// Case shard does not exist -> error
	if !ok {
		respMsg = common.NewErrorResponse(fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else if msg.MsgType == common.MsgTStats {
		// Statistics are answered by the server for every shard type
		respMsg = common.NewStatsResponse(s.registry.Store(shard.Store.Name()).Snapshot(), nil)
	} else {
		// Let the adapter handle the request
		respMsg = shard.Adapter.Handle(&msg, shard.Store)
	}

	s.metrics.observe(shardId, msg.MsgType, start, respMsg.MsgType == common.MsgTError || respMsg.Err != "")

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response for shard %d: %v", shardId, err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// shardName is the name of a shard in the statistics registry
func shardName(shardId uint64) string {
	return fmt.Sprintf("shard-%d", shardId)
}

// dbFactory returns the factory for the database of a shard, based on the
// configured engine
func (s *rpcServer) dbFactory(shardId uint64) (store.DBFactory, error) {
	switch s.config.Engine {
	case "", "maple":
		return func() db.ChainDB { return maple.NewMapleDB(nil) }, nil
	case "pebble":
		if s.config.DataDir == "" {
			return nil, fmt.Errorf("the pebble engine requires a data dir")
		}
		dir := filepath.Join(s.config.DataDir, "pebble", shardName(shardId))
		return func() db.ChainDB {
			database, err := pebbledb.NewPebbleDB(pebbledb.DefaultOptions(dir))
			if err != nil {
				Logger.Panicf("failed to open pebble database in %s: %v", dir, err)
			}
			return database
		}, nil
	case "bounded":
		return func() db.ChainDB {
			database, err := bounded.NewBoundedDB(nil)
			if err != nil {
				Logger.Panicf("failed to create bounded database: %v", err)
			}
			return database
		}, nil
	default:
		return nil, fmt.Errorf("invalid engine %q, must be one of maple, pebble, bounded", s.config.Engine)
	}
}

func (s *rpcServer) init() error {

	// Init logger
	if err := common.InitLoggers(s.config.LogBackend, s.config.LogFormat, s.config.LogLevel); err != nil {
		return err
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	// Create the Dragonboat NodeHost
	var err error
	if s.config.HasRemoteShard() {
		// Only create the NodeHost if we have remote shards
		s.nodeHost, err = dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
	}

	// Create the redis client (shared by all redis shards)
	var redisClient redis.UniversalClient
	if s.config.HasRedisShard() {
		if len(s.config.Redis.Addrs) == 0 {
			return fmt.Errorf("redis shards require at least one redis address")
		}
		redisClient = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    s.config.Redis.Addrs,
			Password: s.config.Redis.Password,
			DB:       s.config.Redis.DB,
		})
		s.closers = append(s.closers, redisClient)
	}

	// Configure the timeout for the distributed and redis stores
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	// CREATE SHARDS

	/*
		Note: A single RPC Server can have any number of local, remote and redis
		shards. Each shard is either a chain store or a lock manager. The
		following loop creates all the shards and stores them for the RPC server.
	*/

	for _, shardConfig := range s.config.Shards {
		var backend store.IServerStore

		switch {
		case shardConfig.Type.IsRedis():
			prefix := s.config.Redis.Namespace
			if prefix == "" {
				prefix = "dchain"
			}
			namespace := fmt.Sprintf("%s:%d", prefix, shardConfig.ShardID)
			rs, err := rstore.NewRedisStore(rstore.Options{
				Client:    redisClient,
				Namespace: namespace,
				Timeout:   timeout,
			})
			if err != nil {
				return fmt.Errorf("failed to create redis store for shard %d: %w", shardConfig.ShardID, err)
			}
			backend = rs

		case shardConfig.Type.IsRemote():
			if s.nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create remote store")
			}
			factory, err := s.dbFactory(shardConfig.ShardID)
			if err != nil {
				return err
			}

			// Start Raft for the shard
			if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, dstore.CreateStateMachineFactory(factory), s.config.ToDragonboatConfig(shardConfig.ShardID)); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			backend = dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, timeout)

		case shardConfig.Type == common.ShardTypeLocalIStore || shardConfig.Type == common.ShardTypeLocalILockManager:
			factory, err := s.dbFactory(shardConfig.ShardID)
			if err != nil {
				return err
			}
			backend = lstore.NewLocalStore(factory)

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}

		// Choose the appropriate adapter based on the shard type
		var adapter IRPCServerAdapter
		if shardConfig.Type.IsLockManager() {
			adapter = NewLockManagerServerAdapter()
		} else {
			adapter = NewIStoreServerAdapter()
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   proxy.NewServerStoreProxy(shardName(shardConfig.ShardID), backend, s.registry),
			Adapter: adapter,
		})
		Logger.Infof("created %s for shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	Logger.Infof("dChain setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)

	// Start the metrics listener
	if s.config.MetricsEndpoint != "" {
		s.metricsSrv = s.serveMetrics(s.config.MetricsEndpoint)
	}

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer.
// It blocks until Close is called or the process receives SIGINT / SIGTERM.
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		s.Close()
		return err
	}

	// Stop listening on SIGINT / SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if sig, ok := <-sigCh; ok {
			Logger.Infof("received %s, shutting down", sig)
			if err := s.transport.Close(); err != nil {
				Logger.Errorf("failed to close transport: %v", err)
			}
		}
	}()

	err = s.transport.Listen(s.config)
	s.Close()
	return err
}

// Close stops the transport and releases all resources of the shards
func (s *rpcServer) Close() {
	if err := s.transport.Close(); err != nil {
		Logger.Errorf("failed to close transport: %v", err)
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Close(); err != nil {
			Logger.Errorf("failed to close metrics listener: %v", err)
		}
		s.metricsSrv = nil
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			Logger.Errorf("failed to close resource: %v", err)
		}
	}
	s.closers = nil
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
}
