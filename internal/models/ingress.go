package models

import "time"

// Outcome describes what happened to one access-control layer during a run
type Outcome string

const (
	OutcomeCreated           Outcome = "created"
	OutcomeReplaced          Outcome = "replaced"
	OutcomeAuthorized        Outcome = "authorized"
	OutcomeAlreadyAuthorized Outcome = "already-authorized"
	OutcomeFailed            Outcome = "failed"
	OutcomeSkipped           Outcome = "skipped"
)

// IngressTarget is the caller's current public address
type IngressTarget struct {
	IP   string
	CIDR string // always a single-host /32
}

// StepResult represents the result of authorizing the target on one layer
type StepResult struct {
	Layer      string // "network-acl" or "security-group"
	ResourceID string
	Outcome    Outcome
	RuleNumber int32 // network ACL only
	Err        error
}

// Failed reports whether the step ended in an error
func (s StepResult) Failed() bool {
	return s.Outcome == OutcomeFailed
}

// Report summarizes a single authorizer run
type Report struct {
	Target        IngressTarget
	Region        string
	NetworkACL    StepResult
	SecurityGroup StepResult
	StartTime     time.Time
	Duration      time.Duration
}
