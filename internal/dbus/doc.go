// Package dbus exposes the soundloop daemon on the session bus.
// The io.github.jmylchreest.SoundLoop interface offers Play, Stop,
// StartPlaylist, StopPlaylist, PlaylistRunning, SetVolume, ListSources and
// GetServerInformation, and broadcasts SourceStarted/SourceEnded signals.
package dbus
