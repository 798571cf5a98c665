package workshop

// QueryFunc receives the result of QueryItem.
// Entries may be nil when the service returned a tombstoned or missing item.
type QueryFunc func(entries []*ItemDescriptor, err error)

// CompletionFunc receives completion notifications for downloads.
// The callback may observe completions for items other than the one the
// caller is tracking.
type CompletionFunc func(CompletionSignal)

// Registration is returned by RegisterCompletionCallback.
type Registration interface {
	// Unregister removes the callback. Safe to call more than once.
	Unregister()
}

// Session is the content service capability set.
//
// Implementations must only invoke QueryFunc and CompletionFunc from inside
// Pump. All methods are called from a single goroutine.
type Session interface {
	// AppID returns the application the session was initialized for.
	AppID() uint64

	// QueryItem issues a metadata query for id. The result is delivered to fn
	// on a later Pump.
	QueryItem(id uint64, includeMetadata bool, fn QueryFunc)

	// InstallInfo returns the local install of id, if any.
	InstallInfo(id uint64) (InstallInfo, bool)

	// RequestDownload enqueues a download of id and reports whether the
	// service accepted it.
	RequestDownload(id uint64, highPriority bool) bool

	// DownloadProgress samples the progress of id. The second value is false
	// once the service is no longer tracking the item.
	DownloadProgress(id uint64) (Progress, bool)

	// RegisterCompletionCallback registers fn for completion notifications.
	RegisterCompletionCallback(fn CompletionFunc) Registration

	// Pump delivers queued asynchronous results on the calling goroutine.
	Pump()

	// Close releases the session.
	Close() error
}
