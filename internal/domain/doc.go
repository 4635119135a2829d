// Package domain defines the playlist types, the sentinel errors and the
// collaborator interfaces shared by the service, the broadcast hub and the
// display client.
//
// No implementation code lives here. Interfaces sit next to the types they
// describe so adapters and consumers can import them without cycles.
package domain
