// Package fault classifies the failures that can occur while resolving and
// caching JavaFX artifacts.
//
// Every failure carries an error code from github.com/jmgilman/go/errors and a
// retry classification. Transport and integrity failures are retryable, store
// writes and parse failures are permanent. The cache manager converts all of
// them into an outcome instead of returning them, so the codes mostly serve
// logging and retry decisions.
package fault

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/jmgilman/go/errors"
)

// Error codes specific to the artifact cache. Transport failures reuse the
// library's CodeNetwork and CodeTimeout.
const (
	CodeIndexUnavailable    errors.ErrorCode = "INDEX_UNAVAILABLE"
	CodeIntegrity           errors.ErrorCode = "INTEGRITY_MISMATCH"
	CodeStoreWrite          errors.ErrorCode = "STORE_WRITE_FAILED"
	CodeInvalidVersion      errors.ErrorCode = "INVALID_VERSION"
	CodeInvalidDigest       errors.ErrorCode = "INVALID_DIGEST"
	CodeNoCompatibleRelease errors.ErrorCode = "NO_COMPATIBLE_RELEASE"
	CodeUnsupportedPlatform errors.ErrorCode = "UNSUPPORTED_PLATFORM"
)

// Condition classes reported to the top-level caller
const (
	ClassTransport  = "transport"
	ClassIntegrity  = "integrity"
	ClassStoreWrite = "store-write"
	ClassParse      = "parse"
	ClassResolution = "resolution"
	ClassPlatform   = "platform"
	ClassCanceled   = "canceled"
	ClassUnknown    = "unknown"
)

// Transport wraps a network failure (timeout, DNS, HTTP status, reset).
func Transport(err error, message string) error {
	if err == nil {
		return nil
	}
	code := errors.CodeNetwork
	if isTimeout(err) {
		code = errors.CodeTimeout
	}
	return errors.WithClassification(errors.Wrap(err, code, message), errors.ClassificationRetryable)
}

// IndexUnavailable reports that the remote version index could not be read or parsed.
func IndexUnavailable(err error, message string) error {
	if err == nil {
		return errors.WithClassification(errors.New(CodeIndexUnavailable, message), errors.ClassificationRetryable)
	}
	return errors.WithClassification(errors.Wrap(err, CodeIndexUnavailable, message), errors.ClassificationRetryable)
}

// Integrity reports a digest mismatch between a download and its published checksum.
func Integrity(message string) error {
	return errors.WithClassification(errors.New(CodeIntegrity, message), errors.ClassificationRetryable)
}

// StoreWrite wraps a filesystem failure while writing into the store. Never retried.
func StoreWrite(err error, message string) error {
	return errors.WithClassification(errors.Wrap(err, CodeStoreWrite, message), errors.ClassificationPermanent)
}

// InvalidVersion reports an unparseable release identifier.
func InvalidVersion(format string, args ...any) error {
	return errors.Newf(CodeInvalidVersion, format, args...)
}

// InvalidDigest reports a checksum document that does not contain a usable digest.
func InvalidDigest(format string, args ...any) error {
	return errors.WithClassification(errors.Newf(CodeInvalidDigest, format, args...), errors.ClassificationRetryable)
}

// NoCompatibleRelease reports that no remote release satisfied the runtime constraint.
func NoCompatibleRelease(format string, args ...any) error {
	return errors.Newf(CodeNoCompatibleRelease, format, args...)
}

// UnsupportedPlatform reports a host without a JavaFX classifier.
func UnsupportedPlatform(format string, args ...any) error {
	return errors.Newf(CodeUnsupportedPlatform, format, args...)
}

// IsRetryable reports whether the outermost classified error in the chain is retryable.
func IsRetryable(err error) bool {
	return errors.IsRetryable(err)
}

// HasCode reports whether any classified error in the chain carries code.
func HasCode(err error, code errors.ErrorCode) bool {
	for err != nil {
		if pe, ok := err.(errors.PlatformError); ok && pe.Code() == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Class names the condition class of err for logging and user-facing output.
// The innermost recognizable code wins so that a store-write failure wrapped by
// a generic fetch failure is still reported as store-write.
func Class(err error) string {
	if err == nil {
		return ""
	}
	class := ClassUnknown
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if class == ClassUnknown && (e == context.Canceled || e == context.DeadlineExceeded) {
			class = ClassCanceled
		}
		pe, ok := e.(errors.PlatformError)
		if !ok {
			continue
		}
		if c := classOf(pe.Code()); c != "" {
			class = c
		}
	}
	return class
}

func classOf(code errors.ErrorCode) string {
	switch code {
	case errors.CodeNetwork, errors.CodeTimeout, CodeIndexUnavailable:
		return ClassTransport
	case CodeIntegrity:
		return ClassIntegrity
	case CodeStoreWrite:
		return ClassStoreWrite
	case CodeInvalidVersion, CodeInvalidDigest:
		return ClassParse
	case CodeNoCompatibleRelease:
		return ClassResolution
	case CodeUnsupportedPlatform:
		return ClassPlatform
	}
	return ""
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
