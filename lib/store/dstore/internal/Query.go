package internal

// QueryType selects what ChainStateMachine.Lookup reads
type QueryType uint8

const (
	QueryTGet       QueryType = iota // chain of one key, result chain.Chain
	QueryTGetDBInfo                  // engine statistics, result db.DatabaseInfo
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query is a read request passed to SyncRead or StaleRead. Key is ignored by
// QueryTGetDBInfo.
type Query struct {
	Type QueryType
	Key  uint64
}

// GetQuery returns the query reading the chain of key
func GetQuery(key uint64) Query { return Query{Type: QueryTGet, Key: key} }
