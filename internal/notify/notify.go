// Package notify builds and dispatches the emails that tell applicants and
// reviewers what happened to a submission. Dispatch is strictly
// best-effort: the decision is already durable by the time a notification
// is attempted, and a failed send never unwinds it.
package notify

import (
	"context"
	"fmt"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
)

// Template names understood by the mail service.
const (
	TemplateApproved = "registration-approved"
	TemplateReview   = "registration-in-review"
)

// Request is one email to be rendered and sent by the mail service.
type Request struct {
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
}

// Notifier dispatches a notification request.
type Notifier interface {
	Send(ctx context.Context, req Request) error
}

// DecisionRequest builds the notification sent right after a decision is
// persisted by the matching loop.
func DecisionRequest(sub *submission.Submission, detail *submission.Detail) Request {
	template := TemplateReview
	if sub.Type == submission.TypeAutoApproved {
		template = TemplateApproved
	}
	return Request{
		Recipient: detail.EmailAddress,
		Subject:   fmt.Sprintf("Client registration #%d", sub.ID),
		Template:  template,
		Variables: map[string]string{
			"name":   detail.DisplayName(),
			"status": string(sub.Status),
		},
	}
}

// ApprovalRequest builds the final notification sent by the completion loop
// once the approved client exists in the registry, carrying the assigned
// client number.
func ApprovalRequest(sub *submission.Submission, detail *submission.Detail, clientNumber string) Request {
	return Request{
		Recipient: detail.EmailAddress,
		Subject:   fmt.Sprintf("Client registration #%d approved", sub.ID),
		Template:  TemplateApproved,
		Variables: map[string]string{
			"name":          detail.DisplayName(),
			"client_number": clientNumber,
		},
	}
}
