package domain

import (
	"path/filepath"
	"strings"
)

// Category labels an attachment by filename extension and selects its
// storage subdirectory.
type Category string

const (
	CategoryJSON          Category = "JSON"
	CategoryImage         Category = "Image"
	CategoryCSV           Category = "CSV"
	CategoryDocuments     Category = "Documents"
	CategorySpreadsheets  Category = "Spreadsheets"
	CategoryPresentations Category = "Presentations"
	CategoryArchives      Category = "Archives"
	CategoryAudio         Category = "Audio"
	CategoryVideo         Category = "Video"
	CategoryUnsupported   Category = "unsupported"
)

// categoryRule maps one category to its lowercase suffix set.
type categoryRule struct {
	Category Category
	Suffixes []string
}

// categoryTable is ordered; the first category whose suffix set
// matches wins. Extending the taxonomy means adding rows, not code.
var categoryTable = []categoryRule{
	{CategoryJSON, []string{".json"}},
	{CategoryImage, []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}},
	{CategoryCSV, []string{".csv"}},
	{CategoryDocuments, []string{".pdf", ".doc", ".docx", ".txt"}},
	{CategorySpreadsheets, []string{".xls", ".xlsx"}},
	{CategoryPresentations, []string{".ppt", ".pptx"}},
	{CategoryArchives, []string{".zip", ".rar", ".7z", ".tar", ".gz"}},
	{CategoryAudio, []string{".mp3", ".wav", ".m4a", ".ogg", ".flac"}},
	{CategoryVideo, []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}},
}

// Categories returns every supported category in table order, used to
// pre-create the object-store layout.
func Categories() []Category {
	result := make([]Category, len(categoryTable))
	for i, rule := range categoryTable {
		result[i] = rule.Category
	}
	return result
}

// Classify maps a filename to its category by extension. Pure and
// deterministic: the same filename always yields the same category,
// and the category chosen at upload resolves the same relative path
// at download. Unmapped extensions yield CategoryUnsupported.
func Classify(filename string) Category {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return CategoryUnsupported
	}
	for _, rule := range categoryTable {
		for _, suffix := range rule.Suffixes {
			if ext == suffix {
				return rule.Category
			}
		}
	}
	return CategoryUnsupported
}
