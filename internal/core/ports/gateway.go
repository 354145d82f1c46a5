package ports

import "context"

// Choice is one pressable button offered alongside a message. Data is the
// opaque callback payload delivered back when the button is pressed.
type Choice struct {
	Label string
	Data  string
}

// Update is a transport-neutral inbound event: either a text message
// (Callback empty) or a button press (Callback set).
type Update struct {
	ChatID     int64
	UserID     int64
	FullName   string
	Text       string
	Callback   string
	CallbackID string
	MessageID  int
}

// IsCallback reports whether the update is a button press.
func (u Update) IsCallback() bool { return u.Callback != "" }

// Gateway is the outbound messaging surface, keyed by Telegram chat id.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string) error
	// SendChoices sends text with rows of buttons attached.
	SendChoices(ctx context.Context, chatID int64, text string, rows [][]Choice) error
	// AckCallback acknowledges a button press, optionally flashing a short note.
	AckCallback(ctx context.Context, callbackID string, note string) error
	// ClearChoices removes the buttons from a previously sent message.
	ClearChoices(ctx context.Context, chatID int64, messageID int) error
}

// UpdateHandler consumes one inbound update. Implemented by the bot router
// and invoked by the dispatcher workers.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u Update)
}
