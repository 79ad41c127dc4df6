package agent

import "errors"

// ErrTooManyAgents is returned by Spawn when the originating chat already
// has MaxPerChat agents running.
var ErrTooManyAgents = errors.New("agent: too many agents already running for this chat")

// ErrNotFound is returned when an agent id has no corresponding agent.
var ErrNotFound = errors.New("agent: not found")
