package remote

import (
	"fmt"
	"net/url"
)

type fetcherFactory func(uri string) (Fetcher, error)

var registeredFetchers = map[string]fetcherFactory{
	"":       func(uri string) (Fetcher, error) { return NewLocalFetcher(uri) },
	"file":   func(uri string) (Fetcher, error) { return NewLocalFetcher(uri) },
	"local":  func(uri string) (Fetcher, error) { return NewLocalFetcher(uri) },
	"http":   func(uri string) (Fetcher, error) { return NewHttpFetcher(uri) },
	"https":  func(uri string) (Fetcher, error) { return NewHttpFetcher(uri) },
	"s3":     func(uri string) (Fetcher, error) { return NewS3Fetcher(uri) },
	"s3a":    func(uri string) (Fetcher, error) { return NewS3Fetcher(uri) },
	"S3":     func(uri string) (Fetcher, error) { return NewS3Fetcher(uri) },
	"lakefs": func(uri string) (Fetcher, error) { return NewLakeFSFetcher(uri) },
}

// Object returns a Fetcher for the object at uri, picked by the URI scheme.
// A URI without a scheme is treated as a local path.
func Object(uri string) (Fetcher, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	factory, ok := registeredFetchers[parsed.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: unknown scheme: %s", ErrInvalidURI, parsed.Scheme)
	}
	return factory(uri)
}
