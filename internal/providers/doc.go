// Package providers holds what the built-in resource providers share: id
// and context value conventions, root container construction, scope checks
// and cached listing.
//
// Each provider lives in its own subpackage and follows the same shape. The
// root is a single collapsed container. Expanding the container gets a token
// for the node's tenant, lists the domain objects through the cache, and maps
// each one to a resource node carrying the parent's scope.
package providers
