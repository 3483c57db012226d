package models

import "time"

// Message is one entry in a ticket's discussion log. Seq is a store-assigned
// monotonic sequence used by the long-poll endpoint to resume reading.
type Message struct {
	ID        string    `json:"id" db:"id"`
	Seq       int64     `json:"seq" db:"seq"`
	TicketID  int       `json:"ticket_id" db:"ticket_id"`
	Sender    string    `json:"sender" db:"sender"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MessageRequest is the payload for posting a message to a ticket channel.
type MessageRequest struct {
	Content string `json:"content"`
}
