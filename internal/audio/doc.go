// Package audio provides per-source playback units.
// A Unit owns one lazily opened Resource, tracks the intent-to-play flag,
// retries while the host blocks playback and reports natural ends through a
// single replaceable callback. BeepBackend implements Resource on top of the
// beep library for WAV, OGG, MP3 and FLAC sources.
package audio
