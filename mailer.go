package main

import "context"

// Message is a single-recipient HTML email.
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
}

// Relay delivers messages through an authenticated mail relay.
type Relay interface {
	Send(ctx context.Context, msg Message) error
	Health(ctx context.Context) error
}
