package domain

// PageContent holds the extracted payload of one document page.
type PageContent struct {
	Text   string   `json:"text,omitempty"`
	Images []string `json:"images,omitempty"`
}

// PageRecord is the file-backed record of one extracted page. Each
// record is persisted as its own JSON file so partial extraction
// survives a later failure; pages are never database-backed.
type PageRecord struct {
	PageID  int         `json:"page_id"`
	Content PageContent `json:"content"`
}
