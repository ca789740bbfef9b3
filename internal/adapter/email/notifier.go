package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.uber.org/zap"
)

type mailTemplate struct {
	subject string
	text    string
	html    *template.Template
}

// Only events worth an e-mail are listed; everything else is left to the event bus.
var templates = map[domain.EventKind]mailTemplate{
	domain.EventProposalCreated: {
		subject: "You received a new proposal",
		text:    "You have a new %s proposal waiting for your answer.",
		html:    template.Must(template.New("proposal").Parse(`<p>You have a new <strong>{{.Kind}}</strong> proposal waiting for your answer.</p>`)),
	},
	domain.ExchangeEventKind(domain.ExchangeStatusAccepted): {
		subject: "Your exchange was accepted",
		text:    "Exchange %s was accepted. Agree on a meeting to complete it.",
		html:    template.Must(template.New("accepted").Parse(`<p>Exchange <code>{{.ID}}</code> was accepted. Agree on a meeting to complete it.</p>`)),
	},
	domain.ExchangeEventKind(domain.ExchangeStatusCompleted): {
		subject: "Exchange completed",
		text:    "Exchange %s is complete. Don't forget to rate your counterpart.",
		html:    template.Must(template.New("completed").Parse(`<p>Exchange <code>{{.ID}}</code> is complete. Don't forget to rate your counterpart.</p>`)),
	},
}

// Notifier e-mails the target user of selected events.
type Notifier struct {
	sender Sender
	users  domain.UserDirectory
	logger *logger.Logger
}

func NewNotifier(sender Sender, users domain.UserDirectory, log *logger.Logger) *Notifier {
	return &Notifier{sender: sender, users: users, logger: log.Named("EmailNotifier")}
}

// Notify implements domain.Notifier. Events without a template or a target are ignored.
func (n *Notifier) Notify(ctx context.Context, ev domain.Event) error {
	tpl, ok := templates[ev.Kind]
	if !ok || ev.TargetID == "" {
		return nil
	}

	to, err := n.users.GetEmailByID(ctx, ev.TargetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			n.logger.Debug("No e-mail address for event target", zap.String("user_id", ev.TargetID))
			return nil
		}
		return fmt.Errorf("failed to resolve e-mail for %s: %w", ev.TargetID, err)
	}
	if to == "" {
		return nil
	}

	detail := ev.EntityID
	if kind, ok := ev.Data["kind"].(string); ok && ev.Kind == domain.EventProposalCreated {
		detail = kind
	}
	var html bytes.Buffer
	if err := tpl.html.Execute(&html, map[string]string{"ID": ev.EntityID, "Kind": detail}); err != nil {
		return fmt.Errorf("failed to render %s e-mail: %w", ev.Kind, err)
	}
	return n.sender.Send(ctx, []string{to}, tpl.subject, html.String(), fmt.Sprintf(tpl.text, detail))
}
