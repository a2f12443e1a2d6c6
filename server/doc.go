// Package server runs the tracker board: a Gin engine served over HTTP/1.1
// and h2c with panic recovery, request IDs, request logging and a health
// endpoint.
package server
