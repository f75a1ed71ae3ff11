package constants

type ContextKey int

const (
	TxKey ContextKey = iota
	PoolKey
	LoggerKey
	AccountIDKey
)
