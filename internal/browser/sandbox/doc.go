/*
Package sandbox runs page scripts in isolated goja runtimes.

Scripts see a small DOM surface (document.createElement, querySelector,
appendChild, setAttribute, innerHTML, classList and friends) bound to a live
*dom.Document, so insertions made by scripts produce the same mutation
records a parser insertion does. Node-style globals are removed.

setTimeout and setInterval queue their callback; queued callbacks run after
the script in order of delay, and each fires once. Mutation records are
flushed after the script and after every callback. One timeout bounds the
whole run and interrupts the VM when exceeded.

# Usage

	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 4)
	results, err := pool.ExecuteAll(ctx, scripts, doc)
*/
package sandbox
