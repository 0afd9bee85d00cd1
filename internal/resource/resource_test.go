package resource

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

func TestUnknownProviderError_Is(t *testing.T) {
	err := fmt.Errorf("routing: %w", &UnknownProviderError{ProviderID: "db"})

	if !errors.Is(err, ErrUnknownProvider) {
		t.Error("errors.Is(err, ErrUnknownProvider) = false, want true")
	}

	var upe *UnknownProviderError
	if !errors.As(err, &upe) {
		t.Fatal("errors.As should find *UnknownProviderError")
	}
	if upe.ProviderID != "db" {
		t.Errorf("ProviderID = %q, want db", upe.ProviderID)
	}
}

func TestListingError_Unwrap(t *testing.T) {
	cause := errors.New("throttled")
	err := &ListingError{ResourceType: "databaseServer", Subscription: "S1", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("ListingError should unwrap to its cause")
	}
	want := "failed to list databaseServer in subscription S1: throttled"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), "boom"},
		{
			"azure response error",
			fmt.Errorf("list: %w", &azcore.ResponseError{ErrorCode: "AuthorizationFailed", StatusCode: http.StatusForbidden}),
			"AuthorizationFailed (HTTP 403)",
		},
		{
			"azure response error without code",
			&azcore.ResponseError{StatusCode: http.StatusBadGateway},
			"UnknownError (HTTP 502)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.want {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewPlaceholder_NotExpandable(t *testing.T) {
	n := NewPlaceholder("A1.S1.message", "No Resources found.")

	if !n.IsPlaceholder() {
		t.Error("IsPlaceholder() = false, want true")
	}
	if n.Expandable() {
		t.Error("placeholder must never be expandable")
	}
	if n.Scope != nil {
		t.Error("placeholder must not carry a scope")
	}
	if n.Item.Label != "No Resources found." || n.Message != "No Resources found." {
		t.Errorf("unexpected placeholder text: %+v", n)
	}
}

func TestNewResource_CopiesScope(t *testing.T) {
	scope := &Scope{Subscription: Subscription{ID: "S1"}}
	n := NewResource(scope, DisplayItem{ID: "x", Collapsible: CollapsibleCollapsed}, nil)

	scope.Subscription.ID = "changed"
	if n.Scope.Subscription.ID != "S1" {
		t.Errorf("node scope changed with caller's scope: %q", n.Scope.Subscription.ID)
	}
	if !n.Expandable() {
		t.Error("collapsed resource should be expandable")
	}
	if n.Property("missing") != "" {
		t.Error("Property on nil map should return empty string")
	}
}

func TestScope_NodeID(t *testing.T) {
	s := Scope{Account: Account{ID: "A1"}, Subscription: Subscription{ID: "S1"}}
	if got := s.NodeID(); got != "A1.S1" {
		t.Errorf("NodeID() = %q, want A1.S1", got)
	}
}
