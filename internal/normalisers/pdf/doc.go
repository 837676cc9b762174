// Package pdf provides a Normaliser implementation for PDF documents.
// Text is extracted page by page in reading order; heading lines split
// sections, and documents without detectable headings are segmented by page.
package pdf
