// Package hash provides keyed hashing for short-lived secrets.
//
// One-time codes are never stored in plain text: callers keep only the hash
// and verify user input by recomputing it in constant time.
package hash
