// Package cache persists registry responses together with their ETag so the
// server can present the token on the next upstream request. Two backends are
// provided: a local directory tree (temp file + rename) and an S3 bucket.
// Layout for both is <registry>/<path>.body plus a <registry>/<path>.meta
// JSON sidecar on disk, or object metadata on S3.
package cache
