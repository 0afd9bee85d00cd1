// Package databaseserver provides the "SQL Servers" subtree of a subscription.
package databaseserver
