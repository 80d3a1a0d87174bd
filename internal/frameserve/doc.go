// Package frameserve produces the frames at the head of a pipeline: a
// synthetic test pattern or the images of a directory, paced by a rate
// limiter.
package frameserve
