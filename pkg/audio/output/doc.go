// ABOUTME: Audio output package for blocking playback connections
// ABOUTME: Provides the Output interface, backend registry and backends
// Package output provides blocking audio playback connections.
//
// Each backend registers an Opener under a name. An Opener makes a single
// attempt to connect to a target identifier (device, sink, URL or path;
// empty means the system default) at a fixed float32 stereo format.
//
// Backends:
//   - pulse: PulseAudio sinks through miniaudio (malgo)
//   - malgo: miniaudio with automatic backend selection
//   - oto: default device through ebitengine/oto
//   - portaudio: PortAudio devices (build with -tags portaudio)
//   - websocket: network receivers (ws:// URLs or mdns:<name>)
//   - wav: 16-bit PCM WAV files
//   - discard: accepts and drops everything
//
// Example:
//
//	open, err := output.Lookup("pulse")
//	out, err := open("alsa_output.usb-headset", audio.Stereo(48000))
//	err = out.Write(samples)
//	err = out.Drain()
//	err = out.Close()
package output
