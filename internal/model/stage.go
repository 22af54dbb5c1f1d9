package model

import "fmt"

// Stage is the position of a conversation in the origination flow.
type Stage string

const (
	StageGreeting           Stage = "greeting"
	StageQualification      Stage = "qualification"
	StagePersonalDetails    Stage = "personal_details"
	StageVerification       Stage = "verification"
	StageUnderwriting       Stage = "underwriting"
	StageApproval           Stage = "approval"
	StageSalaryVerification Stage = "salary_verification"
	StageRejected           Stage = "rejected"
)

// Stages lists every known stage in flow order.
var Stages = []Stage{
	StageGreeting,
	StageQualification,
	StagePersonalDetails,
	StageVerification,
	StageUnderwriting,
	StageApproval,
	StageSalaryVerification,
	StageRejected,
}

// transitions is the directed stage graph. Self-loops are same-stage reprompts.
var transitions = map[Stage][]Stage{
	StageGreeting:           {StageGreeting, StageQualification},
	StageQualification:      {StageQualification, StagePersonalDetails},
	StagePersonalDetails:    {StagePersonalDetails, StageVerification},
	StageVerification:       {StageVerification, StageUnderwriting, StageRejected},
	StageUnderwriting:       {StageApproval, StageSalaryVerification, StageRejected},
	StageSalaryVerification: {StageSalaryVerification, StageApproval, StageRejected},
	StageApproval:           {StageApproval},
	StageRejected:           {StageRejected},
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further progress is possible from s.
func (s Stage) Terminal() bool {
	return s == StageApproval || s == StageRejected
}

// CanTransition reports whether the edge from -> to exists in the stage graph.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Status is the coarse reporting state of a conversation.
type Status string

const (
	StatusActive              Status = "active"
	StatusPendingVerification Status = "pending_verification"
	StatusDocumentsVerified   Status = "documents_verified"
	StatusCompleted           Status = "completed"
	StatusRejected            Status = "rejected"
)

// DeriveStatus computes the status that follows a stage transition.
// documentsVerified marks a salary_verification self-loop caused by a
// verified document that could not yet be rechecked.
func DeriveStatus(current Status, from, to Stage, documentsVerified bool) (Status, error) {
	if !CanTransition(from, to) {
		return current, fmt.Errorf("illegal stage transition %s -> %s", from, to)
	}
	switch to {
	case StageApproval:
		return StatusCompleted, nil
	case StageRejected:
		return StatusRejected, nil
	case StageSalaryVerification:
		if documentsVerified {
			return StatusDocumentsVerified, nil
		}
		if from == StageUnderwriting {
			return StatusPendingVerification, nil
		}
		return current, nil
	default:
		return current, nil
	}
}
