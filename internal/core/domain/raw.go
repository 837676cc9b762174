package domain

// RawDocument is already-fetched content for one source.
// It is the discovery layer's output before normalisation.
type RawDocument struct {
	// SourceID links to the Source this content belongs to.
	SourceID string

	// URI is the original location (URL, file path).
	URI string

	// Type is the declared document format.
	Type SourceType

	// Content is the raw bytes.
	Content []byte

	// Metadata contains fetch-layer key-value pairs (etag, last-modified).
	Metadata map[string]string
}

// Source returns the Source identity described by this document.
func (r *RawDocument) Source() Source {
	url := r.URI
	if url == "" {
		url = r.SourceID
	}
	return Source{ID: r.SourceID, URL: url, Type: r.Type}
}
