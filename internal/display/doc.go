// Package display is the client side of the playlist: a Scheduler that
// rotates through the items on screen and a ConnectionManager that keeps
// the scheduler supplied with the server's latest snapshot.
package display
