// Package expiry resolves which calendar expiry dates are currently
// relevant for an index. Results are cached per index with a TTL; a
// direct expiry-date source is preferred, instrument scraping is the
// fallback, and weekly anchors are fabricated when instruments exist but
// carry no usable expiry.
package expiry
