// Package server implements the optional HTTP status server: health and
// statistics endpoints for the running recorders plus the Prometheus
// metrics endpoint.
package server
