package errors

// ErrorCode identifies the kind of failure the engine reports (decode, feature,
// candidate, store, and I/O failures).
type ErrorCode string

const (
	// DecodeError: unreadable or corrupt input. Reported per file, never
	// fatal in a batch.
	ErrDecode ErrorCode = "DECODE_ERROR"
	// EmptyAudio: the decoded buffer is empty for the requested window.
	ErrEmptyAudio ErrorCode = "EMPTY_AUDIO"
	// ZeroFeature: a query MFCC or chroma summary has zero norm.
	ErrZeroFeature ErrorCode = "ZERO_FEATURE"
	// NoCandidates: Stage-2 was requested but the store has no features.
	ErrNoCandidates ErrorCode = "NO_CANDIDATES"
	// StoreError: a persistent-store failure; aborts the current transaction.
	ErrStore ErrorCode = "STORE_ERROR"
	// IoError: filesystem failure opening a track file.
	ErrIO ErrorCode = "IO_ERROR"
)
