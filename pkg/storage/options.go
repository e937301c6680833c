package storage

// Option configures a single Put.
type Option func(*putOptions)

type putOptions struct {
	contentType  string
	cacheControl string
	acl          ACL
}

// WithContentType sets the Content-Type stored with the object.
// Default: application/octet-stream.
func WithContentType(ct string) Option {
	return func(o *putOptions) {
		if ct != "" {
			o.contentType = ct
		}
	}
}

// WithACL overrides Config.DefaultACL.
func WithACL(acl ACL) Option {
	return func(o *putOptions) {
		if acl != "" {
			o.acl = acl
		}
	}
}

// WithCacheControl sets the Cache-Control header served with the object.
func WithCacheControl(v string) Option {
	return func(o *putOptions) {
		o.cacheControl = v
	}
}
