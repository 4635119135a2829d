// Package app provides the application service layer.
//
// Service orchestrates the playlist use cases: list, create, update, delete,
// duplicate, image upload and the adjacent-swap reorder. It validates at the
// boundary, talks to the Content Store and the blob store through domain
// interfaces, and announces successful mutations on the change publisher.
package app
