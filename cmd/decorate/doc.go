// Package main is the decorate stage: it draws poses onto frames.
//
// Usage:
//
//	./decorate pos raw final -sample-code
package main
