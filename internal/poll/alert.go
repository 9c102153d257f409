package poll

import "sync"

// AlertLevel is the severity of a user-facing alert.
type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertSuccess
	AlertError
)

func (l AlertLevel) String() string {
	switch l {
	case AlertSuccess:
		return "success"
	case AlertError:
		return "error"
	default:
		return "info"
	}
}

// Alert is a message shown to the user once an action completes.
type Alert struct {
	Level AlertLevel
	Title string
	Text  string
}

// Notifier presents alerts.
type Notifier interface {
	Notify(Alert)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Alert)

func (f NotifierFunc) Notify(a Alert) { f(a) }

// AlertLog keeps every alert in order. It is the notifier used by headless
// commands and by tests.
type AlertLog struct {
	mu     sync.Mutex
	alerts []Alert
}

func (l *AlertLog) Notify(a Alert) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, a)
}

// Alerts returns a copy of the recorded alerts.
func (l *AlertLog) Alerts() []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Alert(nil), l.alerts...)
}

// Last returns the most recent alert.
func (l *AlertLog) Last() (Alert, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.alerts) == 0 {
		return Alert{}, false
	}
	return l.alerts[len(l.alerts)-1], true
}
