package proxy

import (
	"time"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
	"github.com/ValentinKolb/dChain/lib/management"
	"github.com/ValentinKolb/dChain/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("proxy")

// ServerStoreProxy is the entry point a cache tier uses for one named store.
// It forwards the four chain operations to the underlying store unchanged and
// records statistics. It never retries and holds no state of the chains.
type ServerStoreProxy struct {
	name  string
	store store.IServerStore
	stats *management.StoreStatistics
}

var _ store.IServerStore = (*ServerStoreProxy)(nil)

// NewServerStoreProxy creates a proxy for the store s under the given name.
// If registry is nil no statistics are recorded.
func NewServerStoreProxy(name string, s store.IServerStore, registry *management.Registry) *ServerStoreProxy {
	p := &ServerStoreProxy{name: name, store: s}
	if registry != nil {
		p.stats = registry.Store(name)
	}
	return p
}

// Name returns the name of the proxied store
func (p *ServerStoreProxy) Name() string {
	return p.name
}

func (p *ServerStoreProxy) observe(op management.Op, key uint64, start time.Time, err error) {
	if err != nil {
		log.Warningf("%s: %s key=%d failed: %v", p.name, op, key, err)
	}
	if p.stats != nil {
		p.stats.Observe(op, start, err)
	}
}

func (p *ServerStoreProxy) payload(n int) {
	if p.stats != nil {
		p.stats.AddPayload(n)
	}
}

func (p *ServerStoreProxy) elements(c chain.Chain) {
	if p.stats != nil {
		p.stats.AddElements(c.Len())
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (p *ServerStoreProxy) Get(key uint64) (chain.Chain, error) {
	start := time.Now()
	c, err := p.store.Get(key)
	p.observe(management.OpGet, key, start, err)
	p.elements(c)
	return c, err
}

func (p *ServerStoreProxy) Append(key uint64, payload []byte) error {
	start := time.Now()
	err := p.store.Append(key, payload)
	p.observe(management.OpAppend, key, start, err)
	p.payload(len(payload))
	return err
}

func (p *ServerStoreProxy) GetAndAppend(key uint64, payload []byte) (chain.Chain, error) {
	start := time.Now()
	prior, err := p.store.GetAndAppend(key, payload)
	p.observe(management.OpGetAndAppend, key, start, err)
	p.payload(len(payload))
	p.elements(prior)
	return prior, err
}

func (p *ServerStoreProxy) ReplaceAtHead(key uint64, expect, update chain.Chain) error {
	start := time.Now()
	err := p.store.ReplaceAtHead(key, expect, update)
	p.observe(management.OpReplaceAtHead, key, start, err)
	for e := range update.All() {
		p.payload(e.PayloadLen())
	}
	return err
}

func (p *ServerStoreProxy) GetDBInfo() (db.DatabaseInfo, error) {
	return p.store.GetDBInfo()
}
