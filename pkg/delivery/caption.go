package delivery

import (
	"strings"

	"github.com/Sternrassler/menu-bot/pkg/catalog"
)

const (
	markAvailable   = "✅"
	markUnavailable = "❌"
)

var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// EscapeMarkdown escapes the characters legacy Telegram Markdown treats as markup.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Caption renders a product as
//
//	<mark> *<title>*[ - <price>]
//	<description>
//
// The mark is ✅ unless the product is explicitly unavailable. The second
// line is present even when the description is empty.
func Caption(p catalog.Product) string {
	mark := markAvailable
	if p.Available != nil && !*p.Available {
		mark = markUnavailable
	}

	var b strings.Builder
	b.WriteString(mark)
	b.WriteString(" *")
	b.WriteString(EscapeMarkdown(p.Title))
	b.WriteString("*")
	if p.Price != "" {
		b.WriteString(" - ")
		b.WriteString(EscapeMarkdown(p.Price))
	}
	b.WriteString("\n")
	b.WriteString(EscapeMarkdown(p.Description))
	return b.String()
}

// ProductMessage is the first message tried for a product: a photo when it
// has an image, text otherwise.
func ProductMessage(p catalog.Product) Message {
	caption := Caption(p)
	if p.ImageURL != "" {
		return Photo(p.ImageURL, caption)
	}
	return Markdown(caption)
}
