package conversation

// NotificationKind distinguishes informational toasts from failures.
type NotificationKind int

const (
	NotifyInfo NotificationKind = iota
	NotifyError
)

func (k NotificationKind) String() string {
	if k == NotifyError {
		return "error"
	}
	return "info"
}

// Notification is a transient user-facing message.
type Notification struct {
	Kind    NotificationKind
	Message string
	// SenderID is set for new-message notifications.
	SenderID string
}

// Notifier shows notifications to the user.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type logNotifier struct{}

func (logNotifier) Notify(n Notification) {
	if n.Kind == NotifyError {
		log.Error("%s", n.Message)
		return
	}
	log.Info("%s", n.Message)
}
