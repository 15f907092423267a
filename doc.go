// Package stampede fronts a slow or rate-limited upstream with a shared cache
// and coordinates refreshes so that at most one caller repopulates the cache
// when it goes stale.
//
// Features:
//
//   - Cache-aside read path with a soft/hard ttl split: values younger than the
//     soft ttl are served without any locking, hard expiry is enforced by the store.
//   - At most one in-flight refresh per key across the whole caller population,
//     including across processes, serialized on an atomic set-if-absent store lock.
//   - Stale value is served while a refresh is in flight elsewhere or after it failed.
//   - Lock ownership is token-checked, an expired and re-acquired lock is never
//     deleted by its previous holder.
//   - Pluggable shared store: Redis, in-memory, sharded in-memory, go-cache.
//   - Allows logging, stats collection.
//   - Propagates context to allow better control of backend and application components.
package stampede
