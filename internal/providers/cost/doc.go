// Package cost lists what each Azure service billed a subscription over the
// configured cost window.
package cost
