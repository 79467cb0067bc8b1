package errcode

// Error code conventions:
// - 0: no error
// - 4xxx: recoverable business errors (the batch keeps going)
// - 5xxx: system errors (the current job aborts and retries)
const (
	OK              = 0
	ResourceMissing = 4004
	InvalidTemplate = 4010
	SystemError     = 5000
)
