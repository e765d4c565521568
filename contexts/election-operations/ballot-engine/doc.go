// Package ballotengine implements anonymous ballot casting and live tallying
// inside the election-operations context.
//
// The module owns the ballot store (voters, the anonymous ballot multiset,
// sessions, the append-only audit log), the atomic vote casting path, and the
// cached tally reads. Ballots structurally carry no voter reference; keeping
// voter identity and candidate choice apart is the module's central
// guarantee. Business rules stay in application/domain layers with
// infrastructure isolated behind ports and adapters.
package ballotengine
