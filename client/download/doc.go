// Package download streams a response body to disk with optional checksum
// validation and progress reporting.
//
// [Handle] writes the body to a temporary file alongside the destination
// path, then renames it over the destination on success:
//
//	err := download.Handle(ctx, body, contentLength, destPath, logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//		download.WithProgress(),
//	)
//
// Routes normally reach Handle through client.File, which binds it to a
// route's successful response.
package download
