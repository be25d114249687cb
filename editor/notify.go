package editor

// Level of user visible notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

var levelNames = [...]string{"info", "warning", "error"}

func (l Level) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler, notifications travel to the
// presentation layer as JSON.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Notifier shows transient notifications.
type Notifier interface {
	Notify(level Level, message string)
}

// View is the presentation layer rendering the page.
type View interface {
	// Render replaces page image with freshly rendered SVG.
	Render(pageURI, svg string)
	// CloseMenu closes selection options menu.
	CloseMenu()
}

// Notification is a recorded notification, see Notifications.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifications collects notifications, it is used by non-interactive
// front ends which report everything at the end.
type Notifications []Notification

// Notify implements Notifier.
func (n *Notifications) Notify(level Level, message string) {
	*n = append(*n, Notification{Level: level, Message: message})
}
