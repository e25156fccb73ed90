package cuckoomap

// Shard is a type alias anticipating a future sharded map that would
// fan out across multiple independent Map cores, each taking a
// disjoint slice of the keyspace to spread lock contention across
// goroutines. It is not implemented here: a real ShardedMap would need
// its own key-to-shard routing, its own cross-shard NrUsed
// aggregation, and a decision on whether a Finding can span a shard
// boundary, none of which this package takes a position on.
type Shard[K any, V any] = Map[K, V]
