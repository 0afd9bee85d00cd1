// Package extension is the in-process extension host the provider registry
// discovers resource providers from.
//
// An extension is described by a YAML manifest:
//
//	name: sql
//	contributes:
//	  has_resource_providers: true
//	  resource_providers: [databaseServer]
//
// Manifests come from the config file and from every *.yaml or *.yml file in
// the extensions directory. When neither declares any, the built-in
// "azurecore" extension contributes every provider in the catalog.
//
// Activating an extension resolves its provider names against a Catalog of
// factories. An unknown name or a failing factory fails that extension only;
// the registry records it as a discovery error and keeps scanning.
package extension
