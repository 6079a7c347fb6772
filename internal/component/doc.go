// Package component provides the microgrid topology: the component
// registry, the directed connection graph, and the filter engine that
// queries both.
//
// The registry is read-only from the rest of the system's perspective.
// It is populated once at startup from the repository and replaced only
// by a full atomic reload; readers never observe partial mutation.
//
// Connections are directed away from the grid endpoint, aligned with the
// positive-current convention. Endpoints are validated when the snapshot
// is built, not at query time. Acyclicity is a provisioning convention
// and is not enforced here.
//
// Filter semantics: an empty filter set is unconstrained, membership
// within one set is OR, and the two sets of a query combine with AND.
// Results preserve insertion order.
package component
