// Command carefeed fetches, caches and serves the app's remote content
// sheets: the FAQ export and the tips, videos, ratings and share endpoints.
//
// Every content command goes through the same cache-or-fetch accessors the
// local API uses, so `carefeed fetch videos` warms the cache that
// `carefeed serve` answers from.
package main
