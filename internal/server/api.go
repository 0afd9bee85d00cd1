package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
	"github.com/zgpcy/azure-resource-explorer/internal/tree"
)

// maxNodeBodySize caps POSTed node bodies
const maxNodeBodySize = 1 << 20

// errorResponse is the body of every API error
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type subscriptionResponse struct {
	resource.Subscription
	NodeID string     `json:"nodeId"`
	State  tree.State `json:"state"`
}

type accountResponse struct {
	resource.Account
	Subscriptions []subscriptionResponse `json:"subscriptions"`
}

type resourcesResponse struct {
	Item resource.DisplayItem `json:"item"`
	tree.Expansion
}

// handleListProviders handles GET /api/v1/providers
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	ids, err := s.registry.ListProviderIDs(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"providers": ids})
}

// handleListAccounts handles GET /api/v1/accounts
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := make([]accountResponse, 0, len(s.cfg.Accounts))
	for _, a := range s.cfg.Accounts {
		ar := accountResponse{
			Account:       resource.Account{ID: a.ID, Name: a.Name, Tenants: a.Tenants},
			Subscriptions: make([]subscriptionResponse, 0, len(a.Subscriptions)),
		}
		for _, sub := range a.Subscriptions {
			node := s.subscriptions[a.ID+"."+sub.ID]
			ar.Subscriptions = append(ar.Subscriptions, subscriptionResponse{
				Subscription: sub,
				NodeID:       node.ID(),
				State:        node.State(),
			})
		}
		accounts = append(accounts, ar)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// handleSubscriptionResources handles
// GET /api/v1/accounts/{account}/subscriptions/{subscription}/resources.
// The subscription is re-expanded unless ?cached=true and a previous
// expansion finished.
func (s *Server) handleSubscriptionResources(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	node, ok := s.subscriptions[vars["account"]+"."+vars["subscription"]]
	if !ok {
		s.writeError(w, r, http.StatusNotFound,
			fmt.Errorf("subscription %s not found in account %s", vars["subscription"], vars["account"]))
		return
	}

	var exp tree.Expansion
	if r.URL.Query().Get("cached") == "true" {
		exp, ok = node.Children()
	}
	if !ok {
		exp = node.Expand(r.Context())
	}
	s.writeJSON(w, http.StatusOK, resourcesResponse{Item: node.TreeItem(), Expansion: exp})
}

// handleChildren handles POST /api/v1/providers/{provider}/children
func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	providerID, node, ok := s.providerRequest(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.expander.ExpandNode(r.Context(), providerID, node))
}

// handleTreeItem handles POST /api/v1/providers/{provider}/item
func (s *Server) handleTreeItem(w http.ResponseWriter, r *http.Request) {
	providerID, node, ok := s.providerRequest(w, r)
	if !ok {
		return
	}
	item, err := s.registry.GetTreeItem(r.Context(), providerID, node)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// providerRequest checks the {provider} path variable against the registry
// and decodes the node body. It writes the error response itself.
func (s *Server) providerRequest(w http.ResponseWriter, r *http.Request) (string, *resource.Node, bool) {
	providerID := mux.Vars(r)["provider"]

	ids, err := s.registry.ListProviderIDs(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return "", nil, false
	}
	known := false
	for _, id := range ids {
		if id == providerID {
			known = true
			break
		}
	}
	if !known {
		s.writeError(w, r, http.StatusNotFound, &resource.UnknownProviderError{ProviderID: providerID})
		return "", nil, false
	}

	var node resource.Node
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNodeBodySize)).Decode(&node); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid node: %w", err))
		return "", nil, false
	}
	return providerID, &node, true
}

// statusFor maps registry errors to HTTP status codes
func statusFor(err error) int {
	if errors.Is(err, resource.ErrUnknownProvider) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

// writeJSON writes body as JSON with the given status code
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to write response", "status", status, "error", err)
	}
}

// writeError writes an errorResponse carrying the request id
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()), "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: RequestIDFrom(r.Context())})
}
