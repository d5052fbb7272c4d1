// Package cache provides the read-through cache that sits in front of
// workbook loading. Entries are keyed by file path plus a SHA-256 digest of
// the file content, so editing the workbook invalidates the entry without
// any explicit call.
package cache
