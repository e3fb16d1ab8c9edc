// Package events defines the messages published to Kafka after each submission.
package events

import "time"

// FeedbackSubmitted is emitted once per submission, after the remote commit resolved.
type FeedbackSubmitted struct {
	Filename      string    `json:"filename"`
	ModuleID      string    `json:"module_id"`
	ModuleName    string    `json:"module_name"`
	Reviewer      string    `json:"reviewer"`
	FeedbackType  string    `json:"feedback_type"`
	CommitStatus  string    `json:"commit_status"`
	CommitMessage string    `json:"commit_message"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
