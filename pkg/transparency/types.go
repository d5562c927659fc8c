package transparency

// ConcernStatus tracks a concern through its lifecycle. resolved is
// terminal.
type ConcernStatus string

const (
	ConcernOpen      ConcernStatus = "open"
	ConcernResponded ConcernStatus = "responded"
	ConcernDisputed  ConcernStatus = "disputed"
	ConcernResolved  ConcernStatus = "resolved"
)

// Role identifies the acting party class.
type Role string

const (
	RoleLab        Role = "lab"
	RoleAuditor    Role = "auditor"
	RoleGovernment Role = "government"
)

// Roles lists every registrable role.
var Roles = []Role{RoleLab, RoleAuditor, RoleGovernment}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ResponderRoles are the roles allowed to respond to a concern.
var ResponderRoles = []Role{RoleLab, RoleAuditor}

// ResolutionOutcome is an auditor's verdict on a concern.
type ResolutionOutcome string

const (
	OutcomeAccepted      ResolutionOutcome = "accepted"
	OutcomeRejected      ResolutionOutcome = "rejected"
	OutcomeNeedsMoreInfo ResolutionOutcome = "needs_more_info"
)

// Valid reports whether o is a known outcome.
func (o ResolutionOutcome) Valid() bool {
	switch o {
	case OutcomeAccepted, OutcomeRejected, OutcomeNeedsMoreInfo:
		return true
	}
	return false
}

// TemplateType enumerates the compliance templates a lab can file against.
type TemplateType string

const (
	TemplateSafetyEvaluation     TemplateType = "safety_evaluation"
	TemplateTrainingData         TemplateType = "training_data"
	TemplateCapabilityAssessment TemplateType = "capability_assessment"
	TemplateRedTeamReport        TemplateType = "red_team_report"
	TemplateHumanOversight       TemplateType = "human_oversight"
	TemplateIncidentReport       TemplateType = "incident_report"
)

// TemplateTypes lists every valid template type.
var TemplateTypes = []TemplateType{
	TemplateSafetyEvaluation,
	TemplateTrainingData,
	TemplateCapabilityAssessment,
	TemplateRedTeamReport,
	TemplateHumanOversight,
	TemplateIncidentReport,
}

// Valid reports whether t is a known template type.
func (t TemplateType) Valid() bool {
	for _, known := range TemplateTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultRequiredTemplates gate a deployment unless overridden by config.
var DefaultRequiredTemplates = []TemplateType{
	TemplateSafetyEvaluation,
	TemplateCapabilityAssessment,
	TemplateRedTeamReport,
}

// SubmissionStatus tracks a compliance submission. verified and rejected
// are terminal; transitions are monotonic.
type SubmissionStatus string

const (
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionUnderReview SubmissionStatus = "under_review"
	SubmissionVerified    SubmissionStatus = "verified"
	SubmissionRejected    SubmissionStatus = "rejected"
)

// Concern is a pseudonymous report against a deployment or submission.
// Target is free text, typically a deployment id or submission id.
type Concern struct {
	ID          string        `json:"id"`
	AnonID      string        `json:"anon_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Target      string        `json:"target"`
	Status      ConcernStatus `json:"status"`
	CreatedAt   string        `json:"created_at"`
	Resolution  *Resolution   `json:"resolution,omitempty"`
}

// Response is a lab's or auditor's reply to a concern.
type Response struct {
	ID            string `json:"id"`
	ConcernID     string `json:"concern_id"`
	ResponderRole Role   `json:"responder_role"`
	Content       string `json:"content"`
	CreatedAt     string `json:"created_at"`
}

// Resolution is an auditor's terminal disposition of a concern.
type Resolution struct {
	ID        string            `json:"id"`
	ConcernID string            `json:"concern_id"`
	AuditorID string            `json:"auditor_id"`
	Outcome   ResolutionOutcome `json:"outcome"`
	Notes     string            `json:"notes"`
	CreatedAt string            `json:"created_at"`
}

// ComplianceSubmission is a lab's filing against a required template. The
// evidence itself stays off-ledger; only its digest is recorded.
type ComplianceSubmission struct {
	ID            string           `json:"id"`
	LabID         string           `json:"lab_id"`
	DeploymentID  string           `json:"deployment_id"`
	ModelID       string           `json:"model_id"`
	TemplateType  TemplateType     `json:"template_type"`
	Title         string           `json:"title"`
	EvidenceHash  string           `json:"evidence_hash"`
	Status        SubmissionStatus `json:"status"`
	SubmittedAt   string           `json:"submitted_at"`
	ReviewedAt    string           `json:"reviewed_at,omitempty"`
	ReviewerNotes string           `json:"reviewer_notes,omitempty"`
}

// TemplateRequirement reports whether one required template is satisfied
// for a deployment.
type TemplateRequirement struct {
	Template     TemplateType     `json:"template"`
	Verified     bool             `json:"verified"`
	SubmissionID string           `json:"submission_id,omitempty"`
	Status       SubmissionStatus `json:"status,omitempty"`
}

// DeploymentComplianceStatus is the deployment gate's verdict.
type DeploymentComplianceStatus struct {
	DeploymentID       string                `json:"deployment_id"`
	ModelID            string                `json:"model_id"`
	RequiredTemplates  []TemplateType        `json:"required_templates"`
	Templates          []TemplateRequirement `json:"templates"`
	OpenConcernIDs     []string              `json:"open_concern_ids"`
	UnresolvedConcerns int                   `json:"unresolved_concerns"`
	ResolvedConcerns   int                   `json:"resolved_concerns"`
	Cleared            bool                  `json:"cleared"`
	Blocking           []string              `json:"blocking"`
}

// DeploymentClearance is the concern-only release view. Unlike the full
// deployment gate it ignores compliance submissions: it reports whether
// every concern targeting the deployment has been resolved.
type DeploymentClearance struct {
	DeploymentID      string `json:"deployment_id"`
	TotalConcerns     int    `json:"total_concerns"`
	OpenConcerns      int    `json:"open_concerns"`
	RespondedConcerns int    `json:"responded_concerns"`
	ResolvedConcerns  int    `json:"resolved_concerns"`
	Cleared           bool   `json:"is_cleared"`
	Message           string `json:"message"`
}

// Stats summarizes the ledger contents by status and template.
type Stats struct {
	TotalConcerns       int                      `json:"total_concerns"`
	ConcernsByStatus    map[ConcernStatus]int    `json:"concerns_by_status"`
	TotalResponses      int                      `json:"total_responses"`
	TotalResolutions    int                      `json:"total_resolutions"`
	TotalSubmissions    int                      `json:"total_compliance_submissions"`
	SubmissionsByStatus map[SubmissionStatus]int `json:"compliance_by_status"`
	SubmissionsByType   map[TemplateType]int     `json:"compliance_by_template"`
}
