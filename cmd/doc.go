// Package cmd implements the command-line interface for the hIndex hybrid
// learned index. It provides a small command tree for exercising the index
// against synthetic workloads.
//
// The package is organized into subpackages:
//
//   - bench: Commands for building the index and driving mixed
//     lookup/insert workloads against it, with latency reporting and
//     optional CSV export
//   - util: Shared utilities for command-line processing and configuration
//     (internal use)
//
// See hindex -help for a list of all commands.
package cmd
