package authbase

import "log"

// Email is one outbound message to a single recipient.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers notification emails. A send error bubbles up to the
// Service, which rolls back any state that depended on delivery.
type Mailer interface {
	Send(email Email) error
}

// ConsoleMailer is a development Mailer that logs emails to the console.
type ConsoleMailer struct{}

func (c *ConsoleMailer) Send(email Email) error {
	log.Printf("\n=== EMAIL ===")
	log.Printf("To: %s", email.To)
	log.Printf("Subject: %s", email.Subject)
	log.Printf("Body: %s", email.Body)
	log.Printf("=============\n")
	return nil
}
