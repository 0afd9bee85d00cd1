package resource

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

var (
	// ErrUnknownProvider is matched by every *UnknownProviderError
	ErrUnknownProvider = errors.New("azure resource provider doesn't exist")

	// ErrDuplicateProvider is returned when a provider id is registered twice
	ErrDuplicateProvider = errors.New("azure resource provider already registered")
)

// UnknownProviderError is returned when a provider id is not registered,
// even after discovery
type UnknownProviderError struct {
	ProviderID string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("%s. Id: %s", ErrUnknownProvider.Error(), e.ProviderID)
}

// Is makes errors.Is(err, ErrUnknownProvider) true
func (e *UnknownProviderError) Is(target error) bool {
	return target == ErrUnknownProvider
}

// DiscoveryError records one extension that failed to activate or register
// during provider discovery. It never aborts the discovery pass.
type DiscoveryError struct {
	Extension string
	Err       error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("extension %s: %v", e.Extension, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// ListingError is returned by producers when the remote listing call of a
// resource type fails
type ListingError struct {
	ResourceType string
	Subscription string
	Err          error
}

func (e *ListingError) Error() string {
	if e.Subscription == "" {
		return fmt.Sprintf("failed to list %s: %v", e.ResourceType, e.Err)
	}
	return fmt.Sprintf("failed to list %s in subscription %s: %v", e.ResourceType, e.Subscription, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// ErrorMessage renders err for display in a placeholder node.
// Azure response errors are reduced to their error code and status.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.ErrorCode
		if code == "" {
			code = "UnknownError"
		}
		return fmt.Sprintf("%s (HTTP %d)", code, respErr.StatusCode)
	}
	return err.Error()
}
