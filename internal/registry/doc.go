// Package registry keeps the set of registered Azure resource providers and
// routes tree requests to their producers.
//
// Providers come from two places: explicit Register calls, and a lazy,
// one-time scan of the host's extensions. The scan starts on the first call
// to ListProviderIDs, GetRootChildren, GetChildren or GetTreeItem. Concurrent
// callers share the in-flight scan instead of starting their own.
//
// Discovery is best-effort. An extension whose activation or factory fails
// is logged and recorded in DiscoveryErrors, and the scan moves on to the
// next extension.
//
// Example usage:
//
//	reg := registry.New(host, log)
//	ids, err := reg.ListProviderIDs(ctx)
//	if err != nil {
//		return err
//	}
//	for _, id := range ids {
//		nodes, err := reg.GetRootChildren(ctx, id, scope)
//		...
//	}
//
// Lookups of an unregistered id fail with *resource.UnknownProviderError.
package registry
