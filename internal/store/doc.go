// Package store provides SQLite-backed storage for traced plans and worker
// dispatch journals.
//
// Plans are stored as canonical JSON records keyed by their content digest,
// so saving an unchanged recording twice is a no-op. Dispatch records are
// appended in logical clock order.
//
// # Ordering
//
// All ordering uses seq INTEGER, never timestamps. Every query that returns
// more than one row orders by seq ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
