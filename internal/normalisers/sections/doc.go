// Package sections provides the shared building blocks of every
// normaliser: canonical text normalisation, heading heuristics and a
// builder that turns a heading/paragraph stream into domain sections with
// stable identifiers and a content hash.
package sections
