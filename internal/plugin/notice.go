package plugin

// NoticeHandler receives registry notices.
// Handlers run synchronously after the registry lock is released and must
// not block. Panics in handlers are recovered.
type NoticeHandler func(Notice)

// Notice reports a change in the registry to host-side observers.
type Notice struct {
	Type   NoticeType
	Plugin string
	Path   string
	Err    error
}

// NoticeType is the type of registry notice.
type NoticeType int

const (
	// NoticeLoaded is sent when a plugin is registered.
	NoticeLoaded NoticeType = iota
	// NoticeUnloaded is sent when a plugin is removed.
	NoticeUnloaded
	// NoticeEnabled is sent when a plugin is enabled.
	NoticeEnabled
	// NoticeDisabled is sent when a plugin is disabled.
	NoticeDisabled
	// NoticeFailed is sent when a plugin directory fails to load.
	NoticeFailed
)

// String returns a string representation of the notice type.
func (t NoticeType) String() string {
	switch t {
	case NoticeLoaded:
		return "loaded"
	case NoticeUnloaded:
		return "unloaded"
	case NoticeEnabled:
		return "enabled"
	case NoticeDisabled:
		return "disabled"
	case NoticeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Subscribe adds a notice handler.
// Returns an unsubscribe function to remove the handler.
func (r *Registry) Subscribe(handler NoticeHandler) func() {
	if handler == nil {
		return func() {}
	}

	r.subMu.Lock()
	r.subscribers = append(r.subscribers, handler)
	index := len(r.subscribers) - 1
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		// Set to nil instead of removing to keep other indexes valid
		if index < len(r.subscribers) {
			r.subscribers[index] = nil
		}
	}
}

// notify sends a notice to all handlers.
// Must be called without mu held.
func (r *Registry) notify(n Notice) {
	r.subMu.Lock()
	handlers := make([]NoticeHandler, len(r.subscribers))
	copy(handlers, r.subscribers)
	r.subMu.Unlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("notice handler panicked", "notice", n.Type.String(), "panic", p)
				}
			}()
			handler(n)
		}()
	}
}
