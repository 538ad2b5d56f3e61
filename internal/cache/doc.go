// Package cache stores the media engine's two binary assets across a
// SQLite key-value tier and an on-disk blob tier, gated by a version tag.
package cache
