// Package cache stores remote listing results so that re-expanding a tree
// node does not hit the Azure APIs every time.
//
// Two backends are available:
//   - Memory: per-process, expiry driven by a clock.Clock
//   - Redis: shared between replicas, expiry handled by Redis TTLs
//
// Providers use GetJSON and SetJSON to store typed listings:
//
//	var servers []azure.DatabaseServer
//	hit, err := cache.GetJSON(ctx, c, cache.Key("databaseServer", subID), &servers)
package cache
