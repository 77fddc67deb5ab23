// Package cache stores synthesized sentence audio so that replaying a
// sentence, or reopening a document, does not run the speech engine again.
// It has an in-memory LRU level (L1) in front of a compressed disk level (L2).
package cache
