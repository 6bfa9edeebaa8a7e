// Package harness runs ablation variants over manifest entries and collects
// the resulting (power, floor) pairs into a result matrix.
//
// # Execution
//
// For every entry the runner opens the recording once, reads the target
// coarse channel and keeps it as a read-only base view. Every (variant,
// entry) task then:
//
//  1. clones the base view and binds the clone to the configured device,
//     holding one slot of that device for the duration of the task
//  2. applies the variant's steps in order; every library call returns a new
//     view, so no task observes another task's flags
//  3. reduces the final view to a measurement with the variant's method
//  4. writes the measurement into its own matrix cell
//
// Loading the channel once and copying per task gives the same values as
// reopening the file for each variant.
//
// # Failures
//
// Any error inside a task is recorded as a *StepFailedError in that task's
// cell; other cells keep running. A failed load fails every cell of that
// entry. Only context cancellation aborts a run.
//
// # Concurrency
//
// Tasks run on an errgroup bounded by WithWorkers (default 1, sequential).
// Cells are disjoint slots of a dense matrix and need no locking.
package harness
