package httpx

import "time"

// HTTPErrorHandler is a function that handles errors during request processing.
type HTTPErrorHandler func(error, Context)

type ServerOptions struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Middlewares  []MiddlewareFunc
	ErrorHandler HTTPErrorHandler
	Validators   []Validator
}

type ServerOption func(*ServerOptions)

func defaultServerOptions() ServerOptions {
	return ServerOptions{
		Address:      ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		Middlewares:  []MiddlewareFunc{RecoverMiddleware(), RequestIDMiddleware(), LoggerMiddleware()},
		ErrorHandler: defaultHTTPErrorHandler,
	}
}

func WithAddress(addr string) ServerOption {
	return func(o *ServerOptions) {
		if addr != "" {
			o.Address = addr
		}
	}
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

func WithMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(o *ServerOptions) {
		if len(mw) > 0 {
			o.Middlewares = append([]MiddlewareFunc{}, mw...)
		}
	}
}

// WithValidators adds request-level validators executed before route handlers.
func WithValidators(v ...Validator) ServerOption {
	return func(o *ServerOptions) {
		o.Validators = append(o.Validators, v...)
	}
}

type ClientOptions struct {
	BaseURL      string
	Timeout      time.Duration
	Headers      map[string]string
	MaxRedirects int
	RetryCount   int
	RetryWait    time.Duration
}

type ClientOption func(*ClientOptions)

func defaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:      15 * time.Second,
		Headers:      map[string]string{"Accept": "application/json, text/csv;q=0.9, */*;q=0.8"},
		MaxRedirects: 5,
		RetryWait:    200 * time.Millisecond,
	}
}

func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// WithUserAgent adds a User-Agent header to every request.
func WithUserAgent(ua string) ClientOption {
	return func(o *ClientOptions) {
		if ua == "" {
			return
		}
		headers := make(map[string]string, len(o.Headers)+1)
		for k, v := range o.Headers {
			headers[k] = v
		}
		headers["User-Agent"] = ua
		o.Headers = headers
	}
}

func WithMaxRedirects(n int) ClientOption {
	return func(o *ClientOptions) {
		if n >= 0 {
			o.MaxRedirects = n
		}
	}
}

// WithRetry retries transport failures and 5xx answers up to count times,
// backing off from wait.
func WithRetry(count int, wait time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if count >= 0 {
			o.RetryCount = count
		}
		if wait > 0 {
			o.RetryWait = wait
		}
	}
}
