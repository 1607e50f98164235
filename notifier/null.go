package notifier

import "context"

// NullNotifier discards every notification.
type NullNotifier struct{}

// Null returns the shared no-op Notifier.
func Null() Notifier { return NullNotifier{} }

func (NullNotifier) Send(context.Context, Notification) (bool, error) { return false, nil }
