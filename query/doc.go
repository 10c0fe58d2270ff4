// Package query compiles and executes semantic queries.
//
// A query names a target type and, optionally, constraints on its attributes,
// embedded facts and a projection type:
//
//	given { id : CustomerId = "123" } find { Customer }
//	findAll { Customer(status = "active") } as CustomerSummary
//
// FIND_ONE queries (find) resolve one value. The engine first looks for a
// matching fact; otherwise it searches the schema graph for the cheapest path
// from a fact to the target and evaluates it, reading attributes and invoking
// operations. A path that fails during evaluation is excluded and the search
// runs again, until a value is produced or every path is exhausted.
//
// FIND_ALL queries (findAll, or a list target such as Customer[]) gather every
// reachable value: matching facts, their attributes and the results of
// operations returning the target type.
//
// Results are projected by a projection.Provider, locally or across cluster
// members, and published on a multi-subscriber stream with bounded
// per-subscriber buffers. ExecutableQuery.Stop cancels cooperatively: no
// value is emitted after Stop returns and the stream completes without an
// error.
//
// Search exhaustion and invocation failures surface as *Failure from
// ExecutableQuery.Wait. Malformed queries, several targets in one query and
// unknown types are rejected by Query before execution starts.
package query
