// Package model defines the executable artifact tree: features containing
// scenarios containing steps, plus the run contract the schedulers use to
// execute them.
//
// Features and scenarios are both Runnable; a scenario outline is a container
// whose expanded per-example sub-scenarios are the units that actually run.
// Step implementations are looked up through the Runtime at execution time,
// so the same tree can be run sequentially or handed out as parallel jobs.
package model
