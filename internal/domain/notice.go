package domain

import "time"

// Severity classifies a transient notice.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notice is a transient, dismissible message shown to the viewer. Every
// interaction produces exactly one; realtime notifications produce one each.
type Notice struct {
	Severity Severity  `json:"severity"`
	Title    string    `json:"title,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Notifier receives notices.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
