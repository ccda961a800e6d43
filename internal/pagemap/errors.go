package pagemap

import "errors"

// ObjectStoreError is the typed failure taxonomy for ObjectStoreHandler
// construction and fault handling, carried over from the original's
// S3Failure enum in userfaultfd_s3.rs and translated to the stable C-ABI
// code table at the capi boundary.
type ObjectStoreError int

const (
	// ErrNone is the zero value; never returned as an error.
	ErrNone ObjectStoreError = iota
	// ErrInvalidURL means the mapping URL didn't parse as proto://bucket/key.
	ErrInvalidURL
	// ErrSizeNotReturned means a HEAD-equivalent request didn't return a
	// usable content length.
	ErrSizeNotReturned
	// ErrNoBody means a range fetch returned no body.
	ErrNoBody
	// ErrNotFound means the remote object does not exist.
	ErrNotFound
	// ErrPermissionDenied means the remote store rejected the request.
	ErrPermissionDenied
	// ErrIO is a transport-level failure (connection reset, timeout, ...).
	ErrIO
	// ErrShortRead means a range fetch returned fewer bytes than requested.
	ErrShortRead
	// ErrUnknown covers anything that doesn't fit the above.
	ErrUnknown
)

func (e ObjectStoreError) Error() string {
	switch e {
	case ErrInvalidURL:
		return "invalid object store url"
	case ErrSizeNotReturned:
		return "object size not returned"
	case ErrNoBody:
		return "no body returned"
	case ErrNotFound:
		return "object not found"
	case ErrPermissionDenied:
		return "permission denied"
	case ErrIO:
		return "i/o error"
	case ErrShortRead:
		return "partial read"
	default:
		return "unknown object store error"
	}
}

// AsObjectStoreError unwraps err to its ObjectStoreError classification, if
// any, defaulting to ErrUnknown for errors the handler didn't originate.
func AsObjectStoreError(err error) ObjectStoreError {
	if err == nil {
		return ErrNone
	}
	var ose ObjectStoreError
	if errors.As(err, &ose) {
		return ose
	}
	return ErrUnknown
}
