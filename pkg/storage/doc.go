// Package storage stores objects in S3-compatible buckets through aws-sdk-go-v2.
//
// Keys are chosen by the caller and validated against traversal. AWS errors
// are mapped onto sentinels ([ErrNotFound], [ErrAccessDenied], [ErrUploadFailed],
// [ErrDeleteFailed]) so callers never depend on SDK types.
//
//	s, err := storage.New(cfg.S3)
//	if err != nil {
//		return err
//	}
//	info, err := s.Put(ctx, "12/editions/34.html", strings.NewReader(html), int64(len(html)),
//		storage.WithContentType("text/html; charset=utf-8"),
//	)
package storage
