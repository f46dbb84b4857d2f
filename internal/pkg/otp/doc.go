// Package otp generates numeric one-time codes.
//
// Codes come from HOTP (RFC 4226) evaluated over a fresh random secret, so
// every code is independent of the previous ones.
package otp
