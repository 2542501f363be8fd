package rstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/store"
	storetesting "github.com/ValentinKolb/dChain/lib/store/testing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// newTestStore connects to the redis server from DCHAIN_TEST_REDIS_ADDR and
// skips the test if it is not set. Every store gets its own namespace.
func newTestStore(t testing.TB) *Store {
	addr := os.Getenv("DCHAIN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DCHAIN_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}

	s, err := NewRedisStore(Options{
		Client:      client,
		Namespace:   "dchain-test-" + uuid.NewString(),
		CloseClient: true,
	})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, "{"+s.ns+"}:*", 1000).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		s.Close()
	})
	return s
}

func TestRedisStore(t *testing.T) {
	storetesting.RunServerStoreTests(t, "Redis", func(t testing.TB) store.IServerStore {
		return newTestStore(t)
	})
}

func TestReplaceAtHeadIDs(t *testing.T) {
	s := newTestStore(t)

	_ = s.Append(1, []byte("a"))
	_ = s.Append(1, []byte("b"))
	expect, _ := s.Get(1)

	if err := s.ReplaceAtHead(1, chain.New(expect.At(0)), chain.FromPayloads([]byte("x"), []byte("y"))); err != nil {
		t.Fatalf("ReplaceAtHead() error = %v", err)
	}
	c, _ := s.Get(1)
	ids := c.IDs()
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 4 || ids[2] != expect.At(1).ID() {
		t.Errorf("ids after replace = %v, want [3 4 %d]", ids, expect.At(1).ID())
	}
}

func TestNilClient(t *testing.T) {
	if _, err := NewRedisStore(Options{}); !errors.Is(err, ErrNilClient) {
		t.Errorf("NewRedisStore() error = %v, want %v", err, ErrNilClient)
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name        string
		entry       string
		wantID      chain.SequenceID
		wantPayload string
		wantErr     bool
	}{
		{name: "payload", entry: formatID(42) + "hello", wantID: 42, wantPayload: "hello"},
		{name: "empty payload", entry: formatID(1), wantID: 1, wantPayload: ""},
		{name: "max id", entry: formatID(1<<64-1) + "x", wantID: 1<<64 - 1, wantPayload: "x"},
		{name: "binary payload", entry: formatID(7) + "\x00\xff", wantID: 7, wantPayload: "\x00\xff"},
		{name: "too short", entry: "123", wantErr: true},
		{name: "no number", entry: "abcdefghijklmnopqrstuvwxyz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := parseEntry(tt.entry)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEntry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if e.ID() != tt.wantID {
				t.Errorf("parseEntry() id = %d, want %d", e.ID(), tt.wantID)
			}
			if string(e.Payload()) != tt.wantPayload {
				t.Errorf("parseEntry() payload = %q, want %q", e.Payload(), tt.wantPayload)
			}
		})
	}

	if _, err := parseChain([]string{formatID(1), "bad"}); !errors.Is(err, store.NewError(store.RetCInternalError, "")) {
		t.Errorf("parseChain() error = %v, want internal error", err)
	}
}

func TestParseUsedMemory(t *testing.T) {
	info := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n"
	if got := parseUsedMemory(info); got != 1048576 {
		t.Errorf("parseUsedMemory() = %d, want 1048576", got)
	}
	if got := parseUsedMemory(""); got != 0 {
		t.Errorf("parseUsedMemory(\"\") = %d, want 0", got)
	}
}
