package common

// TxnID identifies a single statement execution in the lock manager and logs.
type TxnID uint64

// NilTxnID is never handed out by the executor.
const NilTxnID = TxnID(0)
