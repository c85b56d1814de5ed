package api

import "fmt"

// ErrorKind classifies a failed print request. The kind drives server-side
// logging only; every kind renders as the same opaque XML error on the wire.
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not_found"
	KindPrinterOffline ErrorKind = "printer_offline"
	KindUnsupported    ErrorKind = "unsupported"
	KindIo             ErrorKind = "io"
	KindBadPayload     ErrorKind = "bad_payload"
	KindInternal       ErrorKind = "internal"
)

// ProxyError carries the failure classification through the dispatch
// pipeline.
type ProxyError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

func badPayload(detail string, err error) *ProxyError {
	return &ProxyError{Kind: KindBadPayload, Detail: detail, Err: err}
}

func notFound(printerID string) *ProxyError {
	return &ProxyError{Kind: KindNotFound, Detail: fmt.Sprintf("printer %q not found", printerID)}
}

func printerOffline(printerID string) *ProxyError {
	return &ProxyError{Kind: KindPrinterOffline, Detail: fmt.Sprintf("printer %q is offline", printerID)}
}

func ioError(detail string, err error) *ProxyError {
	return &ProxyError{Kind: KindIo, Detail: detail, Err: err}
}
