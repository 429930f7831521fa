// Package textnorm provides title cleanup for catalog reconciliation.
//
// The primary use cases are:
//   - Building a comparable key from a display title (Normalize)
//   - Extracting a release year from a noisy title (ExtractYear)
//   - Removing release-name noise such as resolution, codec and group tags (StripNoise, BaseTitle)
//   - Measuring title similarity (EditDistance)
//
// Every function is pure and never fails: malformed input degrades to a
// best-effort result.
package textnorm
