// Package statsview serves live runtime statistics for the host process.
// It is only functional when built with the statsview tag:
//
//	go build -tags statsview
//
// After launch, graphs are served at {addr}/debug/statsview and pprof at
// {addr}/debug/pprof/.
package statsview
