// Package server hosts the Fiber HTTP service, the request middleware chain and
// the route table that maps /<registry>/... paths onto configured registries.
// It also assembles the registry.Manager from config so cmd entrypoints only
// need to wire the cache store and metrics before listening.
package server
