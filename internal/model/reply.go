package model

// Action tags a reply for the presentation layer.
type Action string

const (
	ActionNone                  Action = ""
	ActionGreeting              Action = "greeting"
	ActionMoveToQualification   Action = "move_to_qualification"
	ActionCollectAmount         Action = "collect_amount"
	ActionMoveToPersonalDetails Action = "move_to_personal_details"
	ActionCollectName           Action = "collect_name"
	ActionCollectAge            Action = "collect_age"
	ActionCollectCity           Action = "collect_city"
	ActionMoveToVerification    Action = "move_to_verification"
	ActionCollectPhone          Action = "collect_phone"
	ActionCollectAddress        Action = "collect_address"
	ActionCollectEmail          Action = "collect_email"
	ActionRetryVerification     Action = "retry_verification"
	ActionStartUnderwriting     Action = "start_underwriting"
	ActionVerificationFailed    Action = "verification_failed"
	ActionLoanApproved          Action = "loan_approved"
	ActionUploadSalarySlip      Action = "upload_salary_slip"
	ActionWaitingForUpload      Action = "waiting_for_upload"
	ActionLoanRejected          Action = "loan_rejected"
	ActionGenerateSanction      Action = "generate_sanction"
	ActionApplicationClosed     Action = "application_closed"
	ActionError                 Action = "error"
)

// Reply is the externally visible answer to one inbound message.
type Reply struct {
	ConversationID string         `json:"conversation_id"`
	Message        string         `json:"response"`
	Action         Action         `json:"action,omitempty"`
	Data           map[string]any `json:"data"`
	Stage          Stage          `json:"stage"`
	Status         Status         `json:"status"`
}
