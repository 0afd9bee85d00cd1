package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// StorageAccount is an Azure storage account
type StorageAccount struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	Kind         string `json:"kind"`
	BlobEndpoint string `json:"blobEndpoint"`
}

// BlobContainer is a container inside a storage account
type BlobContainer struct {
	Name         string `json:"name"`
	LastModified string `json:"lastModified,omitempty"`
}

// StorageAccountPagerFactory creates a pager over the storage accounts of a subscription
type StorageAccountPagerFactory func(subscriptionID string, cred azcore.TokenCredential) (Pager[armstorage.AccountsClientListResponse], error)

// ContainerPagerFactory creates a pager over the containers behind a blob endpoint
type ContainerPagerFactory func(blobEndpoint string, cred azcore.TokenCredential) (Pager[azblob.ListContainersResponse], error)

// NewStorageAccountPager lists accounts through the armstorage management client
func NewStorageAccountPager(subscriptionID string, cred azcore.TokenCredential) (Pager[armstorage.AccountsClientListResponse], error) {
	client, err := armstorage.NewAccountsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage accounts client: %w", err)
	}
	return client.NewListPager(nil), nil
}

// NewContainerPager lists blob containers through the azblob data plane client
func NewContainerPager(blobEndpoint string, cred azcore.TokenCredential) (Pager[azblob.ListContainersResponse], error) {
	client, err := azblob.NewClient(blobEndpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return client.NewListContainersPager(nil), nil
}

// StorageLister lists storage accounts and their blob containers
type StorageLister struct {
	newAccountPager   StorageAccountPagerFactory
	newContainerPager ContainerPagerFactory
	retry             RetryPolicy
	logger            *logger.Logger
}

// NewStorageLister creates a lister. Nil factories use the live Azure clients.
func NewStorageLister(accounts StorageAccountPagerFactory, containers ContainerPagerFactory, retry RetryPolicy, log *logger.Logger) *StorageLister {
	if accounts == nil {
		accounts = NewStorageAccountPager
	}
	if containers == nil {
		containers = NewContainerPager
	}
	return &StorageLister{
		newAccountPager:   accounts,
		newContainerPager: containers,
		retry:             retry,
		logger:            log.Component("storage"),
	}
}

// ListStorageAccounts returns every storage account in the subscription
func (l *StorageLister) ListStorageAccounts(ctx context.Context, sub resource.Subscription, cred azcore.TokenCredential) ([]StorageAccount, error) {
	var accounts []StorageAccount

	err := l.retry.Do(ctx, func(ctx context.Context) error {
		pager, err := l.newAccountPager(sub.ID, cred)
		if err != nil {
			return err
		}
		accounts = accounts[:0]
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				l.logger.Debug("Storage account listing failed, will retry",
					"subscription_id", sub.ID,
					"error", err)
				return err
			}
			for _, a := range page.Value {
				if a == nil || a.Name == nil {
					continue
				}
				accounts = append(accounts, toStorageAccount(a))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("subscription %s (ID: %s): %w", sub.Name, sub.ID, err)
	}
	return accounts, nil
}

// ListBlobContainers returns the containers of the account behind blobEndpoint
func (l *StorageLister) ListBlobContainers(ctx context.Context, blobEndpoint string, cred azcore.TokenCredential) ([]BlobContainer, error) {
	if blobEndpoint == "" {
		return nil, fmt.Errorf("storage account has no blob endpoint")
	}

	var containers []BlobContainer
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		pager, err := l.newContainerPager(blobEndpoint, cred)
		if err != nil {
			return err
		}
		containers = containers[:0]
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, c := range page.ContainerItems {
				if c == nil || c.Name == nil {
					continue
				}
				bc := BlobContainer{Name: *c.Name}
				if c.Properties != nil && c.Properties.LastModified != nil {
					bc.LastModified = c.Properties.LastModified.UTC().Format("2006-01-02 15:04:05 MST")
				}
				containers = append(containers, bc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blob endpoint %s: %w", blobEndpoint, err)
	}
	return containers, nil
}

func toStorageAccount(a *armstorage.Account) StorageAccount {
	acct := StorageAccount{
		ID:       deref(a.ID),
		Name:     deref(a.Name),
		Location: deref(a.Location),
	}
	if a.Kind != nil {
		acct.Kind = string(*a.Kind)
	}
	if a.Properties != nil && a.Properties.PrimaryEndpoints != nil {
		acct.BlobEndpoint = deref(a.Properties.PrimaryEndpoints.Blob)
	}
	return acct
}
