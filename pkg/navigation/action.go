// Package navigation turns user actions into chat responses.
//
// The Controller is pure: it reads the catalog cache and returns the
// messages and product sections to send, but sends nothing itself.
// Responder wires a Controller to a delivery.Pipeline.
package navigation

import (
	"strings"
)

// Kind is the type of a user action.
type Kind int

const (
	// KindText is any input that is not a recognised command or button.
	KindText Kind = iota
	// KindStart shows the store card and category keyboard.
	KindStart
	// KindSelectCategory lists the products of one category.
	KindSelectCategory
	// KindAllItems lists every product, grouped by category.
	KindAllItems
	// KindRefresh drops the cached catalog and starts over.
	KindRefresh
	// KindHelp shows usage help.
	KindHelp
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindSelectCategory:
		return "select_category"
	case KindAllItems:
		return "all_items"
	case KindRefresh:
		return "refresh"
	case KindHelp:
		return "help"
	default:
		return "text"
	}
}

// Keyboard button labels.
const (
	CategoryPrefix = "📂 "
	AllItemsLabel  = "🍽️ All Items"
	RefreshLabel   = "🔄 Refresh"
)

// UserAction is one thing a user asked for in one chat.
type UserAction struct {
	ChatID int64
	Kind   Kind

	// Category is the category name for KindSelectCategory.
	Category string

	// Text is the raw input.
	Text string
}

// ParseText maps raw chat input to an action.
//
//	/start, /menu      -> KindStart
//	/help              -> KindHelp
//	📂 <name>          -> KindSelectCategory (name kept verbatim)
//	🍽️ All Items       -> KindAllItems
//	🔄 Refresh         -> KindRefresh
//	anything else      -> KindText
//
// Commands may carry a @botname suffix and trailing arguments.
func ParseText(chatID int64, text string) UserAction {
	action := UserAction{ChatID: chatID, Kind: KindText, Text: text}
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "/") {
		switch command(trimmed) {
		case "/start", "/menu":
			action.Kind = KindStart
		case "/help":
			action.Kind = KindHelp
		}
		return action
	}

	switch {
	case trimmed == AllItemsLabel:
		action.Kind = KindAllItems
	case trimmed == RefreshLabel:
		action.Kind = KindRefresh
	case strings.HasPrefix(text, CategoryPrefix):
		// The keyboard sends CategoryPrefix + name verbatim; keep the name
		// byte-exact so it still equals the upstream category name.
		if name := strings.TrimPrefix(text, CategoryPrefix); strings.TrimSpace(name) != "" {
			action.Kind = KindSelectCategory
			action.Category = name
		}
	}
	return action
}

func command(text string) string {
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd)
}
