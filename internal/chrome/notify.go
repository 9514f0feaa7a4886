package chrome

import "time"

// Level is a notification severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// DefaultDuration is how long a notification stays up.
const DefaultDuration = 3 * time.Second

// Notification is a transient banner.
type Notification struct {
	ID        int
	Message   string
	Level     Level
	ExpiresAt time.Time
}

// Notifier keeps the banners that have not yet expired.
type Notifier struct {
	now    func() time.Time
	nextID int
	items  []Notification
}

// NewNotifier returns an empty notifier reading time from now.
func NewNotifier(now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{now: now}
}

// Show adds a banner that expires after d (DefaultDuration when d <= 0).
func (n *Notifier) Show(message string, level Level, d time.Duration) Notification {
	if d <= 0 {
		d = DefaultDuration
	}
	n.nextID++
	item := Notification{
		ID:        n.nextID,
		Message:   message,
		Level:     level,
		ExpiresAt: n.now().Add(d),
	}
	n.items = append(n.items, item)
	return item
}

// Prune drops expired banners and reports whether any were removed.
func (n *Notifier) Prune() bool {
	now := n.now()
	kept := n.items[:0]
	for _, item := range n.items {
		if now.Before(item.ExpiresAt) {
			kept = append(kept, item)
		}
	}
	removed := len(kept) != len(n.items)
	n.items = kept
	return removed
}

// Active returns the banners currently shown, oldest first.
func (n *Notifier) Active() []Notification {
	return append([]Notification(nil), n.items...)
}
