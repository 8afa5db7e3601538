package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by any operation invoked before Initialize.
	ErrNotInitialized = errors.New("anystore: store not initialized; call Initialize first")

	// ErrClusterPattern is returned by Keys and Clear on a cluster-mode redis
	// backend, where cross-slot scans are unavailable.
	ErrClusterPattern = errors.New("anystore: pattern operations are not supported in cluster mode")
)

// InvalidNamespaceError is a construction-time failure of the namespace rule.
type InvalidNamespaceError struct {
	Namespace string
	Reason    string
}

func (e *InvalidNamespaceError) Error() string {
	return fmt.Sprintf("anystore: invalid namespace %q: %s", e.Namespace, e.Reason)
}

// MissingOptionError signals that a required construction option (usually the
// backend connection handle) was not provided.
type MissingOptionError struct {
	Option string
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("anystore: required option %s is missing", e.Option)
}

// UnsupportedBackendError signals an unrecognized backend kind tag.
type UnsupportedBackendError struct {
	Backend string
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("anystore: unsupported backend %q", e.Backend)
}
