package mailer

import (
	"crs/src/lib"
	"crs/src/models"
	"fmt"
	"log"
	"os"
)

// ReservationCreated notifies a guest that their reservation was recorded.
// Fire-and-forget: callers run it in a goroutine, failures are only logged.
func ReservationCreated(r *models.Reservation) {
	subject := fmt.Sprintf("Reservation received: %s", r.Event.Title)
	body := fmt.Sprintf(
		"Hola %s,\n\nYour reservation for %s has been recorded.\nReference: %s\nStatus: %s\n\nYour QR code is your entry pass. Do not share it.\n",
		r.FullName, r.Event.Title, r.Reference.String(), r.Status,
	)
	if r.ValidUntil != nil {
		body += fmt.Sprintf("\nPayment proof is required before %s or the reservation is released.\n", r.ValidUntil.Format("2006-01-02 15:04"))
	}
	send(r.Email, subject, body)
}

// ReservationConfirmed notifies a guest their spot is locked in.
func ReservationConfirmed(r *models.Reservation) {
	subject := fmt.Sprintf("Reservation confirmed: %s", r.Event.Title)
	body := fmt.Sprintf(
		"Hola %s,\n\nYour reservation for %s is confirmed.\nReference: %s\n\nPresent your QR code at the door for entry.\nNo changes or refunds once confirmed.\n",
		r.FullName, r.Event.Title, r.Reference.String(),
	)
	send(r.Email, subject, body)
}

func send(to, subject, body string) {
	from := os.Getenv("MAIL_FROM")
	fromName := os.Getenv("MAIL_FROM_NAME")
	if from == "" {
		log.Println("[mailer] MAIL_FROM not set, skipping notification")
		return
	}
	if err := lib.SendMail(&lib.SendMailInput{
		From:     from,
		FromName: fromName,
		To:       to,
		Subject:  subject,
		Body:     body,
	}); err != nil {
		log.Printf("[mailer] Error sending mail to %s: %s\n", to, err.Error())
	}
}
