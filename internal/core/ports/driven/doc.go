// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the project registry, the two retrieval
// backends and the services the local backend composes.
package driven
