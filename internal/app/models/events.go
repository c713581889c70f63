package models

import "time"

// WS channel and event type constants for the search channel protocol.
const (
	ChannelSearch = "search"

	EventTypeSubscribe = "subscribe"
	EventTypeSubAck    = "sub_ack"
	EventTypeSubNack   = "sub_nack"
	EventTypeStatus    = "status"
	EventTypeAssistant = "assistant"
	EventTypeTerminal  = "terminal"
)

// Progress milestones published while a job runs. Values are monotone.
const (
	ProgressAccepted    = 10
	ProgressIntent      = 25
	ProgressFilters     = 40
	ProgressProvider    = 60
	ProgressEnforcer    = 75
	ProgressRanked      = 90
	ProgressDone        = 100
)

// StreamEvent is one message on a request's WS channel.
type StreamEvent struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Status    JobStatus   `json:"status,omitempty"`
	Progress  int         `json:"progress,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
}

// AssistantContext selects which prose template or prompt the assistant
// stage uses.
type AssistantContext string

const (
	AssistantGateFail     AssistantContext = "GATE_FAIL"
	AssistantClarify      AssistantContext = "CLARIFY"
	AssistantSummary      AssistantContext = "SUMMARY"
	AssistantSearchFailed AssistantContext = "SEARCH_FAILED"
	AssistantGenericQuery AssistantContext = "GENERIC_QUERY_NARRATION"
)

// AssistantMessage is the validated assistant payload pushed over WS.
type AssistantMessage struct {
	Context      AssistantContext `json:"type"`
	Message      string           `json:"message"`
	Question     string           `json:"question,omitempty"`
	BlocksSearch bool             `json:"blocksSearch"`
	Language     string           `json:"language"`
}
