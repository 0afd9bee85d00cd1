// Package azure talks to the Azure APIs on behalf of the resource providers.
//
// It covers two concerns:
//   - Tokens: IdentityTokenService signs in to every tenant of an account
//     through azidentity and caches the tokens until shortly before expiry.
//     CredentialFor turns the token for a scope's tenant into an
//     azcore.TokenCredential the SDK clients accept.
//   - Listings: SQLServerLister (armsql), StorageLister (armstorage and
//     azblob) and CostClient (armcostmanagement) list the objects behind
//     each provider's tree.
//
// Every remote call runs under a RetryPolicy: exponential backoff from
// cenkalti/backoff, a per-attempt timeout, and no retries for client errors
// other than throttling.
//
// Example usage:
//
//	tokens := azure.NewIdentityTokenService(nil, nil, log)
//	cred, err := azure.CredentialFor(ctx, tokens, scope, azure.AudienceResourceManagement)
//	if err != nil {
//		return err
//	}
//
//	lister := azure.NewSQLServerLister(nil, azure.DefaultRetryPolicy(30*time.Second), log)
//	servers, err := lister.ListDatabaseServers(ctx, scope.Subscription, cred)
package azure
