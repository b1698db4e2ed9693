// Package quota implements the per-user, per-feature, per-day usage ledger
// that enforces free-tier limits.
//
// Every backend exposes the same atomic conditional increment through the
// Ledger interface: the counter for a Key is incremented only while it is
// below the limit, and the check and the increment happen in one step so two
// concurrent requests can never both pass the last free slot.
//
//   - MemoryLedger uses a compare-and-swap loop on an atomic counter per key.
//   - RedisLedger runs a Lua script (GET, compare, INCR, PEXPIRE) so the whole
//     step executes on the server.
//   - PostgresLedger uses INSERT ... ON CONFLICT DO UPDATE guarded by
//     WHERE count < limit; no returned row means the limit was reached.
//
// Keys carry the calendar day in the configured reference timezone. Counters
// from earlier days are never read again; Redis keys expire on their own and
// MemoryLedger evicts them in the background.
package quota
