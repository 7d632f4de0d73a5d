// Package mailer delivers invoice emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/openbill/openbill/internal/invoice"
)

type SMTP struct {
	client  *mail.Client
	from    string
	printer *message.Printer
}

func NewSMTP(host string, port int, username, password, from string) (*SMTP, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}

	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	return &SMTP{
		client:  client,
		from:    from,
		printer: message.NewPrinter(language.English),
	}, nil
}

func (m *SMTP) SendInvoice(ctx context.Context, inv *invoice.Invoice, viewURL, payURL string) error {
	msg := mail.NewMsg()

	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}

	if err := msg.To(inv.ClientEmail); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}

	msg.Subject(fmt.Sprintf("Invoice %s", inv.Number))
	msg.SetBodyString(mail.TypeTextPlain, m.body(inv, viewURL, payURL))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}

	return nil
}

func (m *SMTP) body(inv *invoice.Invoice, viewURL, payURL string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hello %s,\n\n", inv.ClientName)
	fmt.Fprintf(&b, "Please find invoice %s below.\n\n", inv.Number)

	for _, item := range inv.Items {
		fmt.Fprintf(&b, "  %s - %s x %s\n", item.Description, item.Quantity, m.amount(item.UnitPrice))
	}

	b.WriteString("\n")

	if inv.Tax.IsPositive() {
		fmt.Fprintf(&b, "Subtotal: %s\n", m.amount(inv.Subtotal))
		fmt.Fprintf(&b, "Tax: %s\n", m.amount(inv.Tax))
	}

	fmt.Fprintf(&b, "Total due: %s\n", m.amount(inv.Total))

	if inv.DueDate != nil {
		fmt.Fprintf(&b, "Due date: %s\n", inv.DueDate.Format("January 2, 2006"))
	}

	if viewURL != "" {
		fmt.Fprintf(&b, "\nView your invoice: %s\n", viewURL)
	}

	if payURL != "" {
		fmt.Fprintf(&b, "Pay online: %s\n", payURL)
	}

	return b.String()
}

func (m *SMTP) amount(d interface{ InexactFloat64() float64 }) string {
	return m.printer.Sprintf("$%.2f", d.InexactFloat64())
}

// Discard is used when no SMTP relay is configured; it logs the
// suppressed email instead of failing the send operation.
type Discard struct{}

func (Discard) SendInvoice(_ context.Context, inv *invoice.Invoice, viewURL, _ string) error {
	slog.Info("smtp not configured, suppressing invoice email",
		"number", inv.Number, "to", inv.ClientEmail, "view_url", viewURL)

	return nil
}
