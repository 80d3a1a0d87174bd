// Package main is the posidet stage. It reads frames, detects the tracked
// object and publishes its pose.
//
// Usage:
//
//	./posidet thresh raw pos -min-value 180 -min-area 20
//	./posidet hsv raw pos -h-min 340 -h-max 20
//	./posidet diff raw pos -config stages.toml -config-key posidet
//
// The aruco type validates its board configuration and then requires a
// marker backend, which this build does not provide.
package main
