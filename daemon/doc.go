// Package daemon runs the external fact producer.
//
// A Pool hands out a bounded number of Daemons. Each Daemon runs the producer
// one invocation at a time; the pool caps how many invocations run at once
// and reuses idle daemons.
//
//	pool := daemon.NewPool("indexer", daemon.WithSize(8))
//	code, err := pool.Run(ctx, "/src/chromium", []string{"--out", "unit.idx", "a.cc"})
package daemon
