package selfservice

// Option configures a Service.
type Option func(*OptionHolder)

// OptionHolder holds configuration options.
type OptionHolder struct {
	apiKey      string
	apiSecret   string
	deviceID    string
	employeeID  string
	cacheDir    string
	noCache     bool
	memoryCache bool
	mockHistory bool
}

// WithCredentials sets the API key pair used for token auth.
func WithCredentials(key, secret string) Option {
	return func(o *OptionHolder) {
		o.apiKey = key
		o.apiSecret = secret
	}
}

// WithDeviceID sets the device label stamped onto check-in rows.
func WithDeviceID(id string) Option {
	return func(o *OptionHolder) {
		o.deviceID = id
	}
}

// WithEmployeeID pins the employee record instead of resolving it from the
// signed-in user.
func WithEmployeeID(id string) Option {
	return func(o *OptionHolder) {
		o.employeeID = id
	}
}

// WithCacheDir sets the directory for the response cache.
func WithCacheDir(dir string) Option {
	return func(o *OptionHolder) {
		o.cacheDir = dir
	}
}

// WithNoCache disables response caching entirely.
func WithNoCache() Option {
	return func(o *OptionHolder) {
		o.noCache = true
	}
}

// WithMemoryCache keeps the response cache off disk.
func WithMemoryCache() Option {
	return func(o *OptionHolder) {
		o.memoryCache = true
	}
}

// WithMockHistory serves canned attendance rows instead of fetching,
// for demos against an empty site.
func WithMockHistory() Option {
	return func(o *OptionHolder) {
		o.mockHistory = true
	}
}
