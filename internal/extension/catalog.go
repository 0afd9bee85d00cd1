package extension

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zgpcy/azure-resource-explorer/internal/azure"
	"github.com/zgpcy/azure-resource-explorer/internal/providers"
	"github.com/zgpcy/azure-resource-explorer/internal/providers/cost"
	"github.com/zgpcy/azure-resource-explorer/internal/providers/databaseserver"
	"github.com/zgpcy/azure-resource-explorer/internal/providers/storageaccount"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// Catalog names of the built-in resource providers
const (
	DatabaseServer = "databaseServer"
	StorageAccount = "storageAccount"
	Cost           = "cost"
)

// ErrMissingDependency is returned by a factory whose collaborator is not configured
var ErrMissingDependency = errors.New("missing provider dependency")

// Dependencies are the collaborators provider factories draw from
type Dependencies struct {
	Tokens  azure.TokenService
	SQL     databaseserver.Lister
	Storage storageaccount.Lister
	Cost    cost.Lister
	Listing providers.Listing
}

// Factory builds one resource provider from the shared dependencies
type Factory func(deps Dependencies) (resource.ResourceProvider, error)

// Catalog maps the provider names used in manifests to their factories
type Catalog map[string]Factory

// DefaultCatalog returns the built-in providers
func DefaultCatalog() Catalog {
	return Catalog{
		DatabaseServer: func(deps Dependencies) (resource.ResourceProvider, error) {
			if deps.Tokens == nil || deps.SQL == nil {
				return nil, fmt.Errorf("%w: token service and SQL lister", ErrMissingDependency)
			}
			return databaseserver.New(deps.Tokens, deps.SQL, deps.Listing), nil
		},
		StorageAccount: func(deps Dependencies) (resource.ResourceProvider, error) {
			if deps.Tokens == nil || deps.Storage == nil {
				return nil, fmt.Errorf("%w: token service and storage lister", ErrMissingDependency)
			}
			return storageaccount.New(deps.Tokens, deps.Storage, deps.Listing), nil
		},
		Cost: func(deps Dependencies) (resource.ResourceProvider, error) {
			if deps.Tokens == nil || deps.Cost == nil {
				return nil, fmt.Errorf("%w: token service and cost lister", ErrMissingDependency)
			}
			return cost.New(deps.Tokens, deps.Cost, deps.Listing), nil
		},
	}
}

// Names returns the catalog's provider names in sorted order
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
