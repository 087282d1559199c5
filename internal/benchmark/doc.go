// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides end-to-end benchmarks for pattern resolution.
// They cover the hot paths of every repository kind:
//   - configuration loading through the CUE schema
//   - directory, archive and git traversal
//   - sequential and parallel resolution over a repository chain
//
// To generate a PGO profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
