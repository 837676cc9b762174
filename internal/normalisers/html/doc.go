// Package html provides a Normaliser implementation for HTML documents.
// It removes navigation and other boilerplate, selects the main content
// root and splits the remaining text into sections at h1-h6 boundaries.
package html
