// Package keys derives deterministic cache keys for function calls.
//
// A key has three segments separated by ";": the callable's qualified name
// with its declaration line, the positional arguments, and the keyword
// arguments:
//
//	github.com/acme/app/pricing.Quote:42;eur,{qty:3,sku:a-1},;rounding:up,
//
// Arguments are canonicalized before they are rendered. Strings are folded
// to lowercase ASCII, maps are sorted, nested collections are bracketed and
// bounded by a maximum depth. The composed key is then stripped of
// characters memcached rejects and, when it exceeds the length budget,
// truncated with a SHA-256 suffix.
package keys
