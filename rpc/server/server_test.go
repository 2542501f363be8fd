package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/store"
	storetesting "github.com/ValentinKolb/dChain/lib/store/testing"
	"github.com/ValentinKolb/dChain/rpc/client"
	"github.com/ValentinKolb/dChain/rpc/common"
	"github.com/ValentinKolb/dChain/rpc/serializer"
	"github.com/ValentinKolb/dChain/rpc/transport"
)

// --------------------------------------------------------------------------
// Loopback transport: the client calls the server handler directly
// --------------------------------------------------------------------------

type loopbackServerTransport struct {
	handler transport.ServerHandleFunc
}

func (l *loopbackServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	l.handler = handler
}

func (l *loopbackServerTransport) Listen(common.ServerConfig) error { return nil }

func (l *loopbackServerTransport) Close() error { return nil }

type loopbackClientTransport struct {
	server *loopbackServerTransport
}

func (l *loopbackClientTransport) Connect(common.ClientConfig) error { return nil }

func (l *loopbackClientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	return l.server.handler(shardId, req), nil
}

func (l *loopbackClientTransport) Close() error { return nil }

// newTestServer creates an initialized server with the given shards
func newTestServer(t testing.TB, engine string, ser serializer.IRPCSerializer, shards ...common.ServerShard) (*rpcServer, *loopbackClientTransport) {
	t.Helper()
	lt := &loopbackServerTransport{}
	s := NewRPCServer(common.ServerConfig{
		Shards:        shards,
		Engine:        engine,
		TimeoutSecond: 5,
		LogLevel:      "error",
	}, lt, ser)
	if err := s.init(); err != nil {
		t.Fatalf("init() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s, &loopbackClientTransport{server: lt}
}

func TestRPCStore(t *testing.T) {
	for _, engine := range []string{"maple", "bounded"} {
		for _, name := range serializer.Names {
			ser, err := serializer.New(name)
			if err != nil {
				t.Fatalf("serializer.New(%s) error = %v", name, err)
			}
			storetesting.RunServerStoreTests(t, engine+"/"+name, func(t testing.TB) store.IServerStore {
				_, ct := newTestServer(t, engine, ser, common.ServerShard{ShardID: 1, Type: common.ShardTypeLocalIStore})
				s, err := client.NewRPCStore(1, common.ClientConfig{}, ct, ser)
				if err != nil {
					t.Fatalf("NewRPCStore() error = %v", err)
				}
				return s
			})
		}
	}
}

func TestRPCLockManager(t *testing.T) {
	_, ct := newTestServer(t, "maple", serializer.NewBinarySerializer(), common.ServerShard{ShardID: 2, Type: common.ShardTypeLocalILockManager})
	locks, err := client.NewRPCLockMgr(2, common.ClientConfig{}, ct, serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("NewRPCLockMgr() error = %v", err)
	}

	ok, owner, err := locks.AcquireLock(7, time.Minute)
	if err != nil || !ok || len(owner) == 0 {
		t.Fatalf("AcquireLock() = %v, %x, %v, want true, owner, nil", ok, owner, err)
	}

	ok, _, err = locks.AcquireLock(7, time.Minute)
	if err != nil || ok {
		t.Errorf("second AcquireLock() = %v, %v, want false, nil", ok, err)
	}

	ok, err = locks.ReleaseLock(7, []byte("someone else"))
	if err != nil || ok {
		t.Errorf("ReleaseLock() by other owner = %v, %v, want false, nil", ok, err)
	}

	ok, err = locks.ReleaseLock(7, owner)
	if err != nil || !ok {
		t.Errorf("ReleaseLock() = %v, %v, want true, nil", ok, err)
	}

	ok, _, err = locks.AcquireLock(7, time.Minute)
	if err != nil || !ok {
		t.Errorf("AcquireLock() after release = %v, %v, want true, nil", ok, err)
	}
}

func TestWrongProtocol(t *testing.T) {
	_, ct := newTestServer(t, "maple", serializer.NewBinarySerializer(),
		common.ServerShard{ShardID: 1, Type: common.ShardTypeLocalIStore},
		common.ServerShard{ShardID: 2, Type: common.ShardTypeLocalILockManager},
	)
	ser := serializer.NewBinarySerializer()

	// lock requests against a store shard
	locks, _ := client.NewRPCLockMgr(1, common.ClientConfig{}, ct, ser)
	if _, _, err := locks.AcquireLock(1, 0); err == nil {
		t.Errorf("AcquireLock() on store shard error = nil, want error")
	}

	// chain requests against a lock shard
	s, _ := client.NewRPCStore(2, common.ClientConfig{}, ct, ser)
	if _, err := s.Get(1); err == nil {
		t.Errorf("Get() on lock shard error = nil, want error")
	}

	// unknown shard
	s, _ = client.NewRPCStore(99, common.ClientConfig{}, ct, ser)
	if err := s.Append(1, []byte("x")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Append() on unknown shard error = %v, want not found", err)
	}
}

func TestInvalidReplaceRequest(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	_, ct := newTestServer(t, "maple", ser, common.ServerShard{ShardID: 1, Type: common.ShardTypeLocalIStore})

	req := common.NewChainReplaceAtHeadRequest(1, chain.Empty(), chain.Empty())
	req.Expect = []byte{0xff}
	data, _ := ser.Serialize(*req)

	raw, err := ct.Send(1, data)
	if err != nil {
		t.Fatal(err)
	}
	var resp common.Message
	if err := ser.Deserialize(raw, &resp); err != nil {
		t.Fatal(err)
	}
	err = resp.AsError()
	if !errors.Is(err, &store.Error{Code: store.RetCInvalidOperation}) {
		t.Errorf("ReplaceAtHead() with corrupt expect error = %v, want InvalidOperation", err)
	}
}

func TestStats(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	srv, ct := newTestServer(t, "maple", ser, common.ServerShard{ShardID: 1, Type: common.ShardTypeLocalIStore})

	s, _ := client.NewRPCStore(1, common.ClientConfig{}, ct, ser)
	for i := 0; i < 3; i++ {
		if err := s.Append(5, []byte("abc")); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if _, err := s.Get(5); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	stats, err := client.NewRPCStats(1, common.ClientConfig{}, ct, ser)
	if err != nil {
		t.Fatalf("NewRPCStats() error = %v", err)
	}
	snapshot, err := stats.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got := snapshot.Ops["append"].Count; got != 3 {
		t.Errorf("append count = %d, want 3", got)
	}
	if got := snapshot.PayloadBytes; got != 9 {
		t.Errorf("PayloadBytes = %d, want 9", got)
	}

	info, err := s.GetDBInfo()
	if err != nil || info.DbType == "" {
		t.Errorf("GetDBInfo() = %+v, %v, want db type", info, err)
	}

	// metrics listener
	ts := httptest.NewServer(srv.metricsRouter())
	defer ts.Close()
	for _, tt := range []struct{ path, want string }{
		{"/metrics", `dchain_requests_total{shard="1",type="append"} 3`},
		{"/stats", `"shard-1"`},
		{"/health", `"ok"`},
	} {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s error = %v", tt.path, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("GET %s read error = %v", tt.path, err)
		}
		if !strings.Contains(string(body), tt.want) {
			t.Errorf("GET %s = %q, want it to contain %q", tt.path, body, tt.want)
		}
	}
}

func TestInitErrors(t *testing.T) {
	tests := []struct {
		name   string
		config common.ServerConfig
	}{
		{"invalid engine", common.ServerConfig{
			Engine: "nope",
			Shards: []common.ServerShard{{ShardID: 1, Type: common.ShardTypeLocalIStore}},
		}},
		{"pebble without data dir", common.ServerConfig{
			Engine: "pebble",
			Shards: []common.ServerShard{{ShardID: 1, Type: common.ShardTypeLocalIStore}},
		}},
		{"redis without address", common.ServerConfig{
			Shards: []common.ServerShard{{ShardID: 1, Type: common.ShardTypeRedisIStore}},
		}},
		{"invalid shard type", common.ServerConfig{
			Shards: []common.ServerShard{{ShardID: 1, Type: "nope"}},
		}},
		{"invalid log level", common.ServerConfig{LogLevel: "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRPCServer(tt.config, &loopbackServerTransport{}, serializer.NewBinarySerializer())
			defer s.Close()
			if err := s.init(); err == nil {
				t.Errorf("init() error = nil, want error")
			}
		})
	}
}
