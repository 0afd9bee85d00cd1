// Package storageaccount provides storage accounts and, below each account
// with a blob endpoint, its blob containers.
package storageaccount
