package lode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Storage failure classes. Match with errors.Is on any error returned by
// this package.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrAccessDenied     = errors.New("access denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	ErrAuth             = errors.New("authentication failed")
	ErrNetwork          = errors.New("network error")
	ErrUnclassified     = errors.New("storage error")
)

// StorageError is a classified failure of a storage operation.
type StorageError struct {
	// Kind is one of the Err* classes above.
	Kind error
	// Op is "init", "read" or "write".
	Op string
	// Path is the dataset, object key or image path involved, if any.
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches the error's class.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func wrapStorageError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classifyError(err), Op: op, Path: path, Err: err}
}

// WrapWriteError classifies a failed image or record write. Nil stays nil.
func WrapWriteError(err error, path string) error {
	return wrapStorageError("write", path, err)
}

// WrapReadError classifies a failed query. Nil stays nil.
func WrapReadError(err error, path string) error {
	return wrapStorageError("read", path, err)
}

// WrapInitError classifies a failure to open the store. Nil stays nil.
func WrapInitError(err error, dataset string) error {
	return wrapStorageError("init", dataset, err)
}

// classRules are checked in order against the lower-cased error text.
// The filesystem backend reports errno text; the S3 backend reports API
// error codes and HTTP statuses.
var classRules = []struct {
	kind     error
	patterns []string
}{
	{ErrAccessDenied, []string{"accessdenied", "forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "eacces", "access denied"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey"}},
	{ErrDiskFull, []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{ErrAuth, []string{"nocredentialproviders", "credentials", "invalidaccesskeyid", "signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "dns", "dial tcp"}},
}

// classifyError maps err to a storage class, preferring typed checks over
// message patterns.
func classifyError(err error) error {
	var timeout interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, os.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, os.ErrNotExist):
		return ErrNotFound
	case errors.As(err, &timeout) && timeout.Timeout():
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classRules {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.kind
			}
		}
	}
	return ErrUnclassified
}
