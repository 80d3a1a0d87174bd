/*
Package dataflow moves typed samples between processes through shared memory.

A named channel is one shared-memory segment holding a Node followed by a
payload area. Exactly one Sink publishes into a channel; up to NumSlots
Sources read from it, each holding one slot of the Node's slot table.

# Protocol

The Node carries two kinds of barriers. The write-ready barrier holds the
sample counter: the sink raises it after a sample is completely written.
Every slot has a read-done barrier holding the last counter its source
acknowledged. Before writing sample k+1 the sink waits until every in-use
slot acknowledged k, so no source ever sees a torn sample and a slow
source slows the whole pipeline down instead of missing samples.

# Usage

	sink := dataflow.NewSink[sample.Frame]("raw", sample.FrameCodec{},
		dataflow.WithLogger(log), dataflow.WithMetrics(metrics))
	if err := sink.Bind(); err != nil {
		return err
	}
	defer sink.Close()

	src := dataflow.NewSource[sample.Frame]("raw", sample.FrameCodec{})
	if err := src.Connect(); err != nil {
		return err
	}
	defer src.Close()

	for {
		frame, err := src.Get()
		if dataflow.IsTerminal(err) {
			return nil
		}
		...
	}

NotifySelf on either side releases a blocked Publish or Get from another
goroutine, typically a signal handler.

# Lifecycle

Channels are created by whichever side arrives first. The last party to
leave (sink unbound and no slots in use) removes the segment file. A
process killed while holding a slot leaves it in use until it is released
with ForceRelease.
*/
package dataflow
