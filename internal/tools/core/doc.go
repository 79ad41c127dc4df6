// Package core provides the filesystem tools the companion bot's LLM client
// can invoke: read, write, edit, list, glob, grep, and delete. Every handler
// resolves its path against SetAllowedRoots before touching disk and refuses
// to follow a final symlink (see pathguard.go).
//
// Tools:
//   - read_file: Read file contents
//   - write_file: Write content to a file
//   - edit_file: Edit file with replacements
//   - list_files: List directory contents
//   - glob: Find files matching a pattern
//   - grep: Search file contents with regex
//   - delete_file: Delete a file (requires permission)
package core
