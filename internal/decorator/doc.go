// Package decorator draws detected poses onto video frames.
package decorator
