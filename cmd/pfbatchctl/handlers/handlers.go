// Package handlers implements the RunE functions of the pfbatchctl
// commands. Each handler sets up CLI logging, builds an API client from the
// global flags, and hands the result to the display package; list and
// stats views can refresh themselves with --watch.
package handlers
