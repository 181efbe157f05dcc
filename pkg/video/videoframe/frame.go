package videoframe

// NoCloser is the read only view of an encoded image.
type NoCloser interface {
	Data() []byte
	Len() int
	Timestamp() int64
}

// Frame is an encoded image acquired from a camera connection. The
// bytes belong to the connection and are handed back to it by Close,
// nothing may read them afterwards. Close is safe to call more than once.
type Frame interface {
	NoCloser
	Close()
}
