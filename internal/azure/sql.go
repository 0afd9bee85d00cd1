package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/sql/armsql"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// DatabaseServer is an Azure SQL logical server
type DatabaseServer struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Location                 string `json:"location"`
	FullyQualifiedDomainName string `json:"fqdn"`
	Version                  string `json:"version"`
}

// Pager is the subset of runtime.Pager used by the listers
type Pager[T any] interface {
	More() bool
	NextPage(ctx context.Context) (T, error)
}

// SQLServerPagerFactory creates a pager over the SQL servers of a subscription
type SQLServerPagerFactory func(subscriptionID string, cred azcore.TokenCredential) (Pager[armsql.ServersClientListResponse], error)

// NewSQLServerPager lists servers through the armsql management client
func NewSQLServerPager(subscriptionID string, cred azcore.TokenCredential) (Pager[armsql.ServersClientListResponse], error) {
	client, err := armsql.NewServersClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQL servers client: %w", err)
	}
	return client.NewListPager(nil), nil
}

// SQLServerLister lists the SQL servers of a subscription
type SQLServerLister struct {
	newPager SQLServerPagerFactory
	retry    RetryPolicy
	logger   *logger.Logger
}

// NewSQLServerLister creates a lister. A nil factory uses NewSQLServerPager.
func NewSQLServerLister(factory SQLServerPagerFactory, retry RetryPolicy, log *logger.Logger) *SQLServerLister {
	if factory == nil {
		factory = NewSQLServerPager
	}
	return &SQLServerLister{newPager: factory, retry: retry, logger: log.Component("sql")}
}

// ListDatabaseServers returns every SQL server in the subscription
func (l *SQLServerLister) ListDatabaseServers(ctx context.Context, sub resource.Subscription, cred azcore.TokenCredential) ([]DatabaseServer, error) {
	var servers []DatabaseServer

	err := l.retry.Do(ctx, func(ctx context.Context) error {
		pager, err := l.newPager(sub.ID, cred)
		if err != nil {
			return err
		}
		servers = servers[:0]
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				l.logger.Debug("SQL server listing failed, will retry",
					"subscription_id", sub.ID,
					"error", err)
				return err
			}
			for _, s := range page.Value {
				if s == nil || s.Name == nil {
					continue
				}
				servers = append(servers, toDatabaseServer(s))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("subscription %s (ID: %s): %w", sub.Name, sub.ID, err)
	}
	return servers, nil
}

func toDatabaseServer(s *armsql.Server) DatabaseServer {
	srv := DatabaseServer{
		ID:       deref(s.ID),
		Name:     deref(s.Name),
		Location: deref(s.Location),
	}
	if s.Properties != nil {
		srv.FullyQualifiedDomainName = deref(s.Properties.FullyQualifiedDomainName)
		srv.Version = deref(s.Properties.Version)
	}
	return srv
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
