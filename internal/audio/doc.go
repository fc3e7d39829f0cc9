// Package audio plays a short sound when a popup is shown. Each popup kind
// has its own sound file; WAV, OGG and MP3 are decoded with beep and kept
// in memory until the file changes on disk.
package audio
