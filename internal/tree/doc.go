// Package tree expands subscriptions into render-ready resource nodes.
//
// For one subscription the Expander asks every registered provider for its
// root children, concurrently, and merges the results in provider order.
// Node ids are then prefixed with "<account id>.<subscription id>." so that
// sibling subscriptions rendered in the same tree never collide.
//
// Expansion never fails. Instead it returns one of three terminal states:
//   - StatePopulated: the merged nodes
//   - StateEmpty: one "No Resources found." placeholder
//   - StateErrored: one placeholder carrying the error message
//
// A failing provider therefore never aborts the rendering of sibling
// subscriptions.
package tree
