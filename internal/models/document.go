package models

// DocumentExtraction is the result of extracting text from an uploaded
// document. The text is intended to be passed back as the document content
// of subsequent job submissions.
type DocumentExtraction struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
	SizeBytes int64  `json:"size_bytes"`
}
