// Package main is shmctl, the channel administration tool. It lists
// shared-memory channels, shows the state of their Node and cleans up
// after processes that died without detaching.
//
// Usage:
//
//	./shmctl ls
//	./shmctl info -json raw
//	./shmctl release raw 3
//	./shmctl clean -force 'cam.**'
package main
