package provisioning

import (
	"errors"
	"fmt"
)

// ConfigMissingError indicates a required topology or prerequisite file is
// absent. It aborts the run before any node is touched.
type ConfigMissingError struct {
	Path string
	Err  error
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("required configuration %s is missing: %v", e.Path, e.Err)
}

func (e *ConfigMissingError) Unwrap() error { return e.Err }

// ConnectivityError indicates a remote node is unreachable. Fatal for that
// node only; sibling nodes continue.
type ConnectivityError struct {
	Host string
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("node %s unreachable: %v", e.Host, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ArtifactError indicates the distribution archive could not be fetched,
// validated, or extracted.
type ArtifactError struct {
	Reason string
	Err    error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact error (%s): %v", e.Reason, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// PermissionError indicates a privileged operation failed (service account
// creation, ownership changes, writing privileged paths).
type PermissionError struct {
	Op  string
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied during %s: %v", e.Op, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// StartTimeoutError indicates the service did not report healthy within the
// polling budget. Per-node fatal but never aborts sibling nodes.
type StartTimeoutError struct {
	Attempts int
}

func (e *StartTimeoutError) Error() string {
	return fmt.Sprintf("service did not report healthy after %d attempts", e.Attempts)
}

// VerificationError indicates a post-condition check failed, e.g. a
// directory still exists after removal or a process survived a kill. The
// caller retries the same destructive step once before treating it as fatal.
type VerificationError struct {
	Check string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %s", e.Check)
}

// IsVerification reports whether err is (or wraps) a VerificationError.
func IsVerification(err error) bool {
	var verr *VerificationError
	return errors.As(err, &verr)
}
