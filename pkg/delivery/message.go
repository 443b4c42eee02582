// Package delivery sends product listings to a chat, one message at a time,
// in list order and with a pause between items.
package delivery

import (
	"context"
)

// Kind is the type of an outbound message.
type Kind string

const (
	// KindText is a plain text message.
	KindText Kind = "text"

	// KindPhoto is an image referenced by URL with a caption.
	KindPhoto Kind = "photo"
)

// Keyboard is a reply keyboard, one slice of button labels per row.
type Keyboard [][]string

// Message is one outbound chat message.
type Message struct {
	Kind Kind

	// Text is the message body, or the caption of a photo.
	Text string

	// ImageURL is the photo location. Only used for KindPhoto.
	ImageURL string

	// Keyboard replaces the chat's reply keyboard when set.
	Keyboard Keyboard

	// Markdown marks Text as legacy Markdown.
	Markdown bool
}

// Text returns a plain text message.
func Text(text string) Message {
	return Message{Kind: KindText, Text: text}
}

// Markdown returns a text message formatted as Markdown.
func Markdown(text string) Message {
	return Message{Kind: KindText, Text: text, Markdown: true}
}

// Photo returns a photo message with a Markdown caption.
func Photo(imageURL, caption string) Message {
	return Message{Kind: KindPhoto, Text: caption, ImageURL: imageURL, Markdown: true}
}

// WithKeyboard returns a copy of m carrying the keyboard.
func (m Message) WithKeyboard(k Keyboard) Message {
	m.Keyboard = k
	return m
}

// Sender delivers one message to one chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, chatID int64, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, chatID int64, msg Message) error {
	return f(ctx, chatID, msg)
}
