// Package theme loads popup themes for thord.
//
// A theme is a YAML document describing the background surface and the
// image, bar and text elements of a popup. Themes are looked up in
// ~/.config/thor/themes/ first and fall back to the bundled themes, so a
// user file with a bundled name overrides it.
package theme
