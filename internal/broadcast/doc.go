// Package broadcast implements the playlist Broadcast Hub using the actor pattern.
//
// One goroutine owns the subscriber registry and receives commands over a
// channel (no mutexes around the map). Every change notification re-reads the
// ordered playlist once and fans the full snapshot out with non-blocking
// sends; a subscriber whose buffer is full is dropped instead of stalling the
// others. Each subscriber owns its keep-alive ticker.
package broadcast
