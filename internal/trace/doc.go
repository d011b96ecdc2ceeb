// Package trace records what each workflow run did.
//
// A Trace holds the run's input variables and an ordered list of nodes,
// one per step, keyed by path:
//
//	actor/<i>                 actor condition result
//	parallel                  more than one reactor started
//	reactor/<i>/condition     reactor condition result
//	reactor/<i>/wait          delay, schedule or state wait
//	reactor/<i>/dispatch      reaction event sent
//	reactor/<i>/reset         workflow reset broadcast
//
// The Store keeps recent traces in memory (patrickmn/go-cache) for the
// configured retention and persists finished traces to SQLite.
package trace
