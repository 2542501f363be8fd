package rstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/redis/go-redis/v9"
)

var (
	log = logger.GetLogger("store")

	ErrNilClient = errors.New("rstore: nil client")
)

// idWidth is the number of decimal digits of the id prefix of every list entry.
// 20 digits hold every uint64.
const idWidth = 20

// Options configures a redis backed store
type Options struct {
	Client      redis.UniversalClient
	Namespace   string        // prefix of all keys, stores with different namespaces are independent
	Timeout     time.Duration // per operation timeout (0 = 5s)
	CloseClient bool          // set true only if this store exclusively owns the client
}

// Store implements store.IServerStore on top of redis.
//
// Every chain is a redis list. Each list entry is the element id as
// zero-padded decimal followed by the payload. The sequence counter is a
// plain redis integer incremented with INCR/INCRBY. All write operations run
// as Lua scripts, which redis executes atomically.
type Store struct {
	rdb         redis.UniversalClient
	ns          string
	timeout     time.Duration
	closeClient bool
}

var _ store.IServerStore = (*Store)(nil)

// NewRedisStore creates a new store on the given redis client.
func NewRedisStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	if opts.Namespace == "" {
		opts.Namespace = "dchain"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Store{
		rdb:         opts.Client,
		ns:          opts.Namespace,
		timeout:     opts.Timeout,
		closeClient: opts.CloseClient,
	}, nil
}

// The namespace is used as hash tag so all keys of one store map to the same
// cluster slot, which the scripts need since they touch the sequence key too.
func (s *Store) seqKey() string             { return "{" + s.ns + "}:seq" }
func (s *Store) chainKey(key uint64) string { return "{" + s.ns + "}:c:" + strconv.FormatUint(key, 10) }
func (s *Store) chainPattern() string       { return "{" + s.ns + "}:c:*" }

// --------------------------------------------------------------------------
// Lua Scripts
// --------------------------------------------------------------------------

// KEYS[1] = chain, KEYS[2] = sequence, ARGV[1] = payload
// returns the id of the new element
var appendScript = redis.NewScript(`
local id = redis.call('INCR', KEYS[2])
redis.call('RPUSH', KEYS[1], string.format('%020d', id) .. ARGV[1])
return id
`)

// KEYS[1] = chain, KEYS[2] = sequence, ARGV[1] = payload
// returns the chain before the append
var getAndAppendScript = redis.NewScript(`
local prior = redis.call('LRANGE', KEYS[1], 0, -1)
local id = redis.call('INCR', KEYS[2])
redis.call('RPUSH', KEYS[1], string.format('%020d', id) .. ARGV[1])
return prior
`)

// KEYS[1] = chain, KEYS[2] = sequence
// ARGV[1] = n (number of expected ids), ARGV[2..n+1] = expected ids (20 digits),
// ARGV[n+2..] = update payloads
// returns 1 if the head was replaced, 0 otherwise
var replaceAtHeadScript = redis.NewScript(`
local n = tonumber(ARGV[1])
if n > redis.call('LLEN', KEYS[1]) then
  return 0
end
if n > 0 then
  local head = redis.call('LRANGE', KEYS[1], 0, n - 1)
  for i = 1, n do
    if string.sub(head[i], 1, 20) ~= ARGV[i + 1] then
      return 0
    end
  end
  redis.call('LTRIM', KEYS[1], n, -1)
end
local m = #ARGV - n - 1
if m > 0 then
  local last = redis.call('INCRBY', KEYS[2], m)
  for i = m, 1, -1 do
    redis.call('LPUSH', KEYS[1], string.format('%020d', last - m + i) .. ARGV[n + 1 + i])
  end
end
return 1
`)

// --------------------------------------------------------------------------
// Entry Encoding
// --------------------------------------------------------------------------

func formatID(id chain.SequenceID) string {
	return fmt.Sprintf("%0*d", idWidth, uint64(id))
}

// parseEntry splits a list entry into id and payload
func parseEntry(entry string) (chain.Element, error) {
	if len(entry) < idWidth {
		return chain.Element{}, fmt.Errorf("entry of %d bytes has no id prefix", len(entry))
	}
	id, err := strconv.ParseUint(entry[:idWidth], 10, 64)
	if err != nil {
		return chain.Element{}, fmt.Errorf("entry id: %w", err)
	}
	return chain.NewElement(chain.SequenceID(id), []byte(entry[idWidth:])), nil
}

// parseChain converts the result of LRANGE into a chain
func parseChain(entries []string) (chain.Chain, error) {
	elements := make([]chain.Element, len(entries))
	for i, entry := range entries {
		e, err := parseEntry(entry)
		if err != nil {
			return chain.Empty(), store.NewError(store.RetCInternalError, fmt.Sprintf("corrupt chain element %d: %v", i, err))
		}
		elements[i] = e
	}
	return chain.New(elements...), nil
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Get(key uint64) (chain.Chain, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	entries, err := s.rdb.LRange(ctx, s.chainKey(key), 0, -1).Result()
	if err != nil {
		return chain.Empty(), fmt.Errorf("rstore: get %d: %w", key, err)
	}
	return parseChain(entries)
}

func (s *Store) Append(key uint64, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	keys := []string{s.chainKey(key), s.seqKey()}
	if err := appendScript.Run(ctx, s.rdb, keys, payload).Err(); err != nil {
		return fmt.Errorf("rstore: append %d: %w", key, err)
	}
	return nil
}

func (s *Store) GetAndAppend(key uint64, payload []byte) (chain.Chain, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	keys := []string{s.chainKey(key), s.seqKey()}
	entries, err := getAndAppendScript.Run(ctx, s.rdb, keys, payload).StringSlice()
	if err != nil {
		return chain.Empty(), fmt.Errorf("rstore: get and append %d: %w", key, err)
	}
	return parseChain(entries)
}

func (s *Store) ReplaceAtHead(key uint64, expect, update chain.Chain) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	args := make([]interface{}, 0, 1+expect.Len()+update.Len())
	args = append(args, expect.Len())
	for _, id := range expect.IDs() {
		args = append(args, formatID(id))
	}
	for _, p := range update.Payloads() {
		args = append(args, p)
	}

	keys := []string{s.chainKey(key), s.seqKey()}
	replaced, err := replaceAtHeadScript.Run(ctx, s.rdb, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("rstore: replace at head %d: %w", key, err)
	}
	if replaced == 0 {
		log.Debugf("ReplaceAtHead: key=%d stale expect, chain unchanged", key)
	}
	return nil
}

func (s *Store) GetDBInfo() (db.DatabaseInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	keys := 0
	iter := s.rdb.Scan(ctx, 0, s.chainPattern(), 1000).Iterator()
	for iter.Next(ctx) {
		keys++
	}
	if err := iter.Err(); err != nil {
		return db.DatabaseInfo{}, fmt.Errorf("rstore: scan: %w", err)
	}

	seq, err := s.rdb.Get(ctx, s.seqKey()).Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return db.DatabaseInfo{}, fmt.Errorf("rstore: sequence: %w", err)
	}

	usedMemory := 0
	if info, err := s.rdb.Info(ctx, "memory").Result(); err == nil {
		usedMemory = parseUsedMemory(info)
	}

	return db.DatabaseInfo{
		SizeBytes: usedMemory,
		Keys:      keys,
		DbType:    db.ImplRedis,
		SupportedFeatures: db.FeaturesOf(db.FeatureGet | db.FeatureAppend |
			db.FeatureGetAndAppend | db.FeatureReplaceAtHead | db.FeaturePersistent),
		Metadata: &struct {
			Namespace string `json:"namespace"`
			Sequence  uint64 `json:"sequence"`
			Info      string `json:"info"`
		}{
			Namespace: s.ns,
			Sequence:  seq,
			Info:      "SizeBytes is the memory used by the whole redis server.",
		},
	}, nil
}

// parseUsedMemory reads the used_memory field of the INFO memory output
func parseUsedMemory(info string) int {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:"); ok {
			n, _ := strconv.Atoi(v)
			return n
		}
	}
	return 0
}

// Close releases the underlying redis client only when this store owns it.
func (s *Store) Close() error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			return err
		}
	}
	return nil
}
