// Package tmdb implements source.MetadataCatalog against the TMDB v3 API.
//
// Requests are rate limited client-side and every call carries its own
// timeout, so a slow upstream surfaces as a transport error rather than a
// stalled worker.
package tmdb
