// Package tracking implements open tracking for edition emails.
//
// Every recipient of an edition gets a unique token (NewToken). The token is
// embedded in a transparent 1x1 image (PixelURL, EmbedPixel) and resolved back
// to its TrackingRecord when the mail client loads the image.
//
// Service.RecordOpen applies an open: the first open timestamp is sticky, the
// open count and last open timestamp move on every hit, and unknown tokens are
// ignored. Recorder is the HTTP handler for the pixel; it answers immediately
// and records the open in the background:
//
//	rec := tracking.NewRecorder(svc, tracking.WithRecorderLogger(log))
//	r.Get("/track/{token}", rec.ServeHTTP)
//	...
//	defer rec.Wait(shutdownCtx)
package tracking
