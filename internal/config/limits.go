package config

const (
	// MaxSectionTitleLength is the maximum length for section titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255); chapter titles
	// in tender documents are short.
	MaxSectionTitleLength = 255

	// MaxRequirementTextLength is the maximum length for a task's requirement text.
	MaxRequirementTextLength = 10000

	// MaxSectionContentLength caps integrated chapter content.
	MaxSectionContentLength = 200000

	// MaxUserDescriptionLength caps the free-form hint sent with a generation.
	MaxUserDescriptionLength = 2000

	// MaxTaskStatusLength bounds the free-form task status tag.
	MaxTaskStatusLength = 64

	// MaxSourceIDsPerRequest is the most sources one generation may reference.
	MaxSourceIDsPerRequest = 50
)
