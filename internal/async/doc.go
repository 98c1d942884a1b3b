// Package async provides a write-once Future/Promise pair used to chain the
// remote lookups of the nowcast pipeline.
//
// A Future settles exactly once. Every continuation attached with [Then],
// [ThenFuture], [Future.Catch], [Future.Always], [Future.Delay] or
// [Future.Timeout] fires once after settlement, on the Future's [Executor].
// Failures travel through Then chains untouched until a Catch handles them.
//
// Tests use [Inline] so that a chain on an already settled future runs to
// completion before the call returns. Production code uses [Background].
package async
