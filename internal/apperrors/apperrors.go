package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")

	ErrInvalidPayload    = errors.New("invalid webhook payload")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrAccountUnresolved = errors.New("account id could not be resolved from payload")

	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

type DeliveryNotFoundError struct{ DeliveryID string }

func (e *DeliveryNotFoundError) Error() string {
	return fmt.Sprintf("delivery '%s' not found", e.DeliveryID)
}
func (e *DeliveryNotFoundError) Is(target error) bool { return target == ErrNotFound }

type PullRequestNotFoundError struct{ PullRequestID int64 }

func (e *PullRequestNotFoundError) Error() string {
	return fmt.Sprintf("pull request '%d' not found", e.PullRequestID)
}
func (e *PullRequestNotFoundError) Is(target error) bool { return target == ErrNotFound }

// nonRetryableFragments are matched case-insensitively against the full error
// message. A delivery failing with any of these is not worth replaying: the
// upstream resource is gone, the payload was forged, or the write already
// happened.
var nonRetryableFragments = []string{
	"not found",
	"invalid signature",
	"already exists",
}

// IsRetryable classifies a processing failure for the retry controller.
// Everything is retryable except the known-permanent failure modes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range nonRetryableFragments {
		if strings.Contains(msg, fragment) {
			return false
		}
	}

	return true
}
