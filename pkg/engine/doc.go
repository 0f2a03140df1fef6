// Package engine orchestrates the generate-execute-validate-repair cycle.
// It implements transport.RunStarter: one StartRun call owns one run from
// planning through its terminal outcome, emitting ordered events to the
// caller's EventWriter and persisting the run record along the way.
package engine
