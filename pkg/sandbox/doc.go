// Package sandbox executes untrusted candidate programs in isolated
// subprocesses. Isolation is OS-level: each execution gets its own
// process group, a throwaway working directory, and a scrubbed
// environment. Guest failures (non-zero exit, crash, timeout) are normal
// results, never errors; only failure to spawn the process at all is an
// error.
package sandbox
