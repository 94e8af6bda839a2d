// Command madspark runs MadSpark's idea generation/evaluation/refinement
// workflow from the command line.
//
// Usage:
//
//	madspark run --topic "..." --num-ideas 5 --num-top 3
//	madspark run --config madspark.yaml --topic "..."
//	madspark version
//
// Config, CLI flag parsing beyond the options above, and any HTTP/RPC
// surface are out of scope (spec.md's Non-goals) — this binary is a thin
// wiring layer over the orchestrator package, not a service.
package main
