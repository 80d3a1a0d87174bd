// Package main is the view stage.
//
// Frames render as ASCII art on the terminal or as a PNG snapshot file
// replaced atomically. Poses print as JSON lines. Rendering runs apart
// from reading, so a slow display only drops frames and never holds the
// producer back.
//
// Usage:
//
//	./view frame final -renderer snapshot -out /tmp/final.png
//	./view frame raw -cols 100 -min-update-ms 100
//	./view pose pos
package main
