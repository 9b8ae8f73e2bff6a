// Package process supervises external tool invocations.
//
// Process wraps os/exec for a single run:
//   - stdout and stderr are drained concurrently and split on both '\n' and
//     '\r', so carriage-return status lines arrive one at a time
//   - the last lines of output are kept for error reports
//   - cancellation sends SIGINT to the process group, then SIGKILL after a
//     timeout
//
// Runner is the seam the rest of the program depends on. ExecRunner spawns
// real processes; processtest.Runner scripts them for tests.
package process
