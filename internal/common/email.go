package common

// EmailSender is the outbound email contract.
type EmailSender interface {
	Send(to, subject, html string) error
}

// Email is a captured message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// MemoryEmail records messages for tests.
type MemoryEmail struct {
	Outbox []Email
}

// Send appends the message to the in-memory outbox.
func (m *MemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender discards messages.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string) error { return nil }
