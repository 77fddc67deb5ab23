// Package audio plays raw 16-bit PCM through the system audio device using
// oto/v3.
package audio
