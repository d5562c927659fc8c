package transparency

import "fmt"

// DeploymentStatus evaluates the deployment gate for (deploymentID,
// modelID). A release is cleared iff every required template has its
// latest non-rejected submission verified and no concern targeting the
// deployment or any of its submissions is unresolved. Rejected submissions
// never satisfy a requirement; they stay in the record for auditability.
func (s *Store) DeploymentStatus(deploymentID, modelID string, required []TemplateType) DeploymentComplianceStatus {
	if len(required) == 0 {
		required = DefaultRequiredTemplates
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Latest non-rejected submission per template for this deployment+model.
	latest := map[TemplateType]ComplianceSubmission{}
	submissionIDs := map[string]bool{}
	for _, sub := range s.submissions {
		if sub.DeploymentID != deploymentID {
			continue
		}
		submissionIDs[sub.ID] = true
		if sub.ModelID != modelID || sub.Status == SubmissionRejected {
			continue
		}
		latest[sub.TemplateType] = sub
	}

	status := DeploymentComplianceStatus{
		DeploymentID:      deploymentID,
		ModelID:           modelID,
		RequiredTemplates: required,
		Templates:         make([]TemplateRequirement, 0, len(required)),
		OpenConcernIDs:    []string{},
		Blocking:          []string{},
	}

	for _, tmpl := range required {
		req := TemplateRequirement{Template: tmpl}
		if sub, ok := latest[tmpl]; ok {
			req.SubmissionID = sub.ID
			req.Status = sub.Status
			req.Verified = sub.Status == SubmissionVerified
		}
		status.Templates = append(status.Templates, req)
		if !req.Verified {
			status.Blocking = append(status.Blocking, fmt.Sprintf("template %s not verified", tmpl))
		}
	}

	for _, c := range s.concerns {
		if c.Target != deploymentID && !submissionIDs[c.Target] {
			continue
		}
		switch c.Status {
		case ConcernResolved:
			status.ResolvedConcerns++
		default:
			status.UnresolvedConcerns++
			status.OpenConcernIDs = append(status.OpenConcernIDs, c.ID)
		}
	}
	if status.UnresolvedConcerns > 0 {
		reason := fmt.Sprintf("%d unresolved concern", status.UnresolvedConcerns)
		if status.UnresolvedConcerns > 1 {
			reason += "s"
		}
		status.Blocking = append(status.Blocking, reason)
	}

	status.Cleared = len(status.Blocking) == 0
	return status
}

// Clearance summarizes concern resolution for a deployment. A response or
// dispute does not clear a concern; only an auditor resolution does.
func (s *Store) Clearance(deploymentID string) DeploymentClearance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := DeploymentClearance{DeploymentID: deploymentID}
	var open, responded, disputed int
	for _, concern := range s.concerns {
		if concern.Target != deploymentID {
			continue
		}
		c.TotalConcerns++
		switch concern.Status {
		case ConcernOpen:
			open++
		case ConcernResponded:
			responded++
		case ConcernDisputed:
			disputed++
		case ConcernResolved:
			c.ResolvedConcerns++
		}
	}
	c.OpenConcerns = open
	c.RespondedConcerns = responded + disputed

	unresolved := open + responded + disputed
	c.Cleared = unresolved == 0
	if c.Cleared {
		c.Message = fmt.Sprintf("Deployment cleared. %d concern(s) resolved.", c.ResolvedConcerns)
	} else {
		c.Message = fmt.Sprintf("Deployment BLOCKED. %d unresolved concern(s): %d open, %d responded, %d disputed.",
			unresolved, open, responded, disputed)
	}
	return c
}
