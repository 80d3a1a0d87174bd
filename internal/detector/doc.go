// Package detector finds a tracked object in video frames and reports its
// pose.
//
// The blob detectors (thresh, diff, hsv) select pixels and report their
// centroid in pixels. The aruco detector validates a marker board
// configuration and turns a board estimate from a MarkerBackend into a
// metric 3D pose. Stage connects a detector between a frame channel and a
// pose channel and derives velocity with a Tracker.
package detector
