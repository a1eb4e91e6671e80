// Package driving provides the inbound port: the project service
// interface the CLI (or any other driving adapter) consumes.
package driving
