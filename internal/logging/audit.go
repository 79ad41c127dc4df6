// Audit logging emits structured JSON lifecycle events: session start/end,
// turn start/end, tool execution, agent spawn/complete, job fire. Separate
// from the category loggers in logger.go, audit events always go to one
// file regardless of category toggles, gated only by the debug-mode switch.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies the kind of lifecycle event recorded.
type AuditEventType string

const (
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"
	AuditTurnStart    AuditEventType = "turn_start"
	AuditTurnEnd      AuditEventType = "turn_end"

	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	AuditToolInvoke   AuditEventType = "tool_invoke"
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"

	AuditAgentSpawn    AuditEventType = "agent_spawn"
	AuditAgentComplete AuditEventType = "agent_complete"
	AuditAgentError    AuditEventType = "agent_error"
	AuditAgentCanceled AuditEventType = "agent_canceled"

	AuditJobScheduled AuditEventType = "job_scheduled"
	AuditJobFire      AuditEventType = "job_fire"
	AuditJobComplete  AuditEventType = "job_complete"
	AuditJobError     AuditEventType = "job_error"

	AuditErrorGeneric  AuditEventType = "error_generic"
	AuditErrorCritical AuditEventType = "error_critical"
)

// AuditEvent is a single structured audit log line.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	Category   string                 `json:"cat,omitempty"`
	ChatID     string                 `json:"chat,omitempty"`
	AgentID    string                 `json:"agent,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Action     string                 `json:"action,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
	auditPath string
)

// InitAudit opens the audit log file at path. A no-op when debug mode is
// off or path is empty. Call once at startup, after Initialize.
func InitAudit(path string) error {
	if !debugMode || path == "" {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	expanded := expandHome(path)
	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return fmt.Errorf("create audit log dir: %w", err)
	}

	file, err := os.OpenFile(expanded, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	auditFile = file
	auditPath = expanded
	return nil
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// CloseAudit closes the audit log file. Call at shutdown.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
		auditPath = ""
	}
}

// AuditPath returns the currently open audit log path, or "" if unset.
func AuditPath() string {
	auditMu.Lock()
	defer auditMu.Unlock()
	return auditPath
}

// AuditLog writes an audit event. A no-op when the audit file is not open.
func AuditLog(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// SessionStart records a session lifecycle start.
func SessionStart(chatID string) {
	AuditLog(AuditEvent{EventType: AuditSessionStart, ChatID: chatID, Success: true})
}

// SessionEnd records a session lifecycle end.
func SessionEnd(chatID string, turnCount int, durationMs int64) {
	AuditLog(AuditEvent{
		EventType:  AuditSessionEnd,
		ChatID:     chatID,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"turn_count": turnCount},
	})
}

// TurnStart records the start of a single user turn.
func TurnStart(chatID string, inputLen int) {
	AuditLog(AuditEvent{
		EventType: AuditTurnStart,
		ChatID:    chatID,
		Success:   true,
		Fields:    map[string]interface{}{"input_len": inputLen},
	})
}

// TurnEnd records the end of a single user turn.
func TurnEnd(chatID string, durationMs int64, success bool, errMsg string) {
	AuditLog(AuditEvent{
		EventType:  AuditTurnEnd,
		ChatID:     chatID,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
	})
}

// LLMCall records a completed (or failed) LLM API call.
func LLMCall(chatID, model string, inputTokens, outputTokens int, durationMs int64, success bool, errMsg string) {
	eventType := AuditLLMResponse
	if !success {
		eventType = AuditLLMError
	}
	AuditLog(AuditEvent{
		EventType:  eventType,
		ChatID:     chatID,
		Target:     model,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields: map[string]interface{}{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
		},
	})
}

// ToolExec records a tool invocation result.
func ToolExec(chatID, toolName string, durationMs int64, success bool, errMsg string) {
	eventType := AuditToolComplete
	if !success {
		eventType = AuditToolError
	}
	AuditLog(AuditEvent{
		EventType:  eventType,
		ChatID:     chatID,
		Target:     toolName,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
	})
}

// AgentSpawn records a background agent being spawned.
func AgentSpawn(chatID, agentID, task string) {
	AuditLog(AuditEvent{
		EventType: AuditAgentSpawn,
		ChatID:    chatID,
		AgentID:   agentID,
		Target:    task,
		Success:   true,
	})
}

// AgentComplete records a background agent's terminal status.
func AgentComplete(chatID, agentID string, durationMs int64, success bool, errMsg string) {
	eventType := AuditAgentComplete
	if !success {
		eventType = AuditAgentError
	}
	AuditLog(AuditEvent{
		EventType:  eventType,
		ChatID:     chatID,
		AgentID:    agentID,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
	})
}

// AgentCanceled records a background agent being canceled, e.g. by eviction.
func AgentCanceled(chatID, agentID, reason string) {
	AuditLog(AuditEvent{
		EventType: AuditAgentCanceled,
		ChatID:    chatID,
		AgentID:   agentID,
		Success:   false,
		Message:   reason,
	})
}

// JobScheduled records a scheduled job being registered.
func JobScheduled(jobID, kind string) {
	AuditLog(AuditEvent{
		EventType: AuditJobScheduled,
		Target:    jobID,
		Action:    kind,
		Success:   true,
	})
}

// JobFire records a scheduled job firing.
func JobFire(jobID, chatID string) {
	AuditLog(AuditEvent{
		EventType: AuditJobFire,
		Target:    jobID,
		ChatID:    chatID,
		Success:   true,
	})
}

// JobComplete records a scheduled job's terminal status after firing.
func JobComplete(jobID string, durationMs int64, success bool, errMsg string) {
	eventType := AuditJobComplete
	if !success {
		eventType = AuditJobError
	}
	AuditLog(AuditEvent{
		EventType:  eventType,
		Target:     jobID,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
	})
}

// AuditError records a generic or critical error event outside any
// specific lifecycle above.
func AuditError(category string, err error, critical bool) {
	eventType := AuditErrorGeneric
	if critical {
		eventType = AuditErrorCritical
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	AuditLog(AuditEvent{
		EventType: eventType,
		Category:  category,
		Success:   false,
		Error:     errMsg,
	})
}
