// ABOUTME: Package tap copies a real-time audio stream to an output sink
// ABOUTME: Lock-free on the producer side, blocking I/O on a drain goroutine
/*
Package tap splits a stereo float stream off an audio callback and sends it
to an output backend without ever blocking the callback.

The producer calls Process once per block. The block is passed through
(or silenced when muted) and pushed into a wait-free ring buffer. A drain
worker pops batches and performs blocking writes on the sink. When the ring
is full the whole block is dropped; the callback never waits.

Reconfiguration happens on the producer thread when the configured target
changes: the worker is stopped and joined, the old sink closed, the new one
opened, the ring reset and the worker restarted.

	t, err := tap.New(tap.Config{Backend: "pulse"})
	if err != nil {
		return err
	}
	defer t.Close()

	// in the audio callback
	t.Process(in, out)

	// from a control goroutine
	t.Settings().SetTarget("alsa_output.usb-headset.analog-stereo")
*/
package tap
