// Package extractors converts uploaded document bytes into plain text.
// One extractor exists per supported format family (plain text,
// markdown, PDF); the Registry routes by file extension and rejects
// anything outside the supported set.
package extractors
