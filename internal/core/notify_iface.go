package core

// Notifier is the outbound half of the presentation surface.
// Calls come from the controller goroutine and must not block for long.
type Notifier interface {
	StateChanged(StateChange)
	StatusMessage(text string)
	ErrorOccurred(kind ErrorKind, err error)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) StateChanged(StateChange)       {}
func (NopNotifier) StatusMessage(string)           {}
func (NopNotifier) ErrorOccurred(ErrorKind, error) {}
