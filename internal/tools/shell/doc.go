// Package shell provides the sandboxed command-execution tools the
// companion bot's LLM client can invoke: a single allowlisted argv runner,
// foreground or backgrounded, plus the handlers a model uses to poll and
// terminate anything it started in the background.
//
// Unlike a general dev-agent shell tool, run_command never hands a string
// to sh -c or bash -c. The model supplies a command name and a slice of
// arguments; both are checked against an allowlist and a shell-metacharacter
// filter before os/exec ever sees them, so there is no interpreter in the
// loop left to smuggle a second command through.
//
// Tools:
//   - run_command: execute an allowlisted command, foreground or background
//   - process_output: read accumulated output from a background run
//   - kill_process: signal a background run, including its process group
//   - list_processes: enumerate tracked background runs
package shell
