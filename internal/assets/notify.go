package assets

// Notifier receives the paths a task has just written. The dev server
// implements it to push reload or CSS-inject signals to browsers.
type Notifier interface {
	Notify(paths ...string)
}

// NopNotifier drops notifications. Used outside dev mode.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(...string) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return NopNotifier{}
	}
	return n
}
