// Package semquery answers requests for typed values by searching a graph
// built from a schema of types and service operations.
//
// A query names a target type, optionally with constraints, and may supply
// given facts:
//
//	given { id: CustomerId = "123" } find { Customer(status = "active") }
//	findAll { Customer[] } as CustomerSummary[]
//
// The engine builds a graph whose vertices are types, attributes, operations
// and parameters, adds the fact types in scope, and runs an A* search from
// each fact to the target. Each candidate path is evaluated by invoking its
// operations in order. Paths that fail are recorded so later searches in the
// same query avoid them. Collection results can be projected onto another
// type locally or across a pool of NATS-connected workers.
//
// # Packages
//
//   - schema, schema/sdl: the type and operation model and its GraphQL SDL loader
//   - graph: the search graph, its builder and the display projection
//   - search: A* path search and evaluated path bookkeeping
//   - facts: typed instances, fact sets and fact bags
//   - operation: invokers, retries and canned stub responses
//   - query: parsing, planning and executing queries with result and status streams
//   - projection: local and distributed projection of collection results
//   - natsclient: the NATS connection used by distributed projection
//   - config: YAML and environment configuration
//   - metric, health: Prometheus metrics and health reporting
//   - errors: error classification shared by every package
//
// The semquery command in cmd/semquery runs queries, prints schema graphs and
// serves as a projection worker.
package semquery
