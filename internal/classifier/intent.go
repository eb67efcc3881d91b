package classifier

import "fmt"

// Category is the closed set of request categories the pipeline routes on.
type Category string

const (
	CategoryLocationQuery  Category = "location_query"
	CategoryFileSearch     Category = "file_search"
	CategoryFileRead       Category = "file_read"
	CategoryShellExecution Category = "shell_execution"
	CategoryDataAnalysis   Category = "data_analysis"
	CategoryRemoteTool     Category = "remote_tool"
	CategoryConversation   Category = "conversation"
)

// Categories returns every valid category, in routing-documentation order.
func Categories() []Category {
	return []Category{
		CategoryLocationQuery,
		CategoryFileSearch,
		CategoryFileRead,
		CategoryShellExecution,
		CategoryDataAnalysis,
		CategoryRemoteTool,
		CategoryConversation,
	}
}

// ValidCategory reports whether c is one of the closed category set.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryLocationQuery, CategoryFileSearch, CategoryFileRead,
		CategoryShellExecution, CategoryDataAnalysis, CategoryRemoteTool,
		CategoryConversation:
		return true
	}
	return false
}

// Source records which classification layer produced an intent.
type Source string

const (
	SourceHeuristic       Source = "heuristic"
	SourceModel           Source = "model"
	SourceFallbackDefault Source = "fallback_default"
)

// Conversation subcategories the router treats specially.
const (
	SubEmpty    = "empty"
	SubGreeting = "greeting"
	SubGeneral  = "general"
)

// Intent is a classified user request. Created fresh per request (cache
// hits return a copy) and never mutated after classification.
type Intent struct {
	Category    Category          `json:"category"`
	Subcategory string            `json:"subcategory,omitempty"`
	Source      Source            `json:"source"`
	Confidence  float64           `json:"confidence"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// String returns "category.subcategory", or just the category.
func (i *Intent) String() string {
	if i.Subcategory != "" {
		return fmt.Sprintf("%s.%s", i.Category, i.Subcategory)
	}
	return string(i.Category)
}

// clone returns an independent copy, including the variables map.
func (i *Intent) clone() *Intent {
	out := *i
	if i.Variables != nil {
		out.Variables = make(map[string]string, len(i.Variables))
		for k, v := range i.Variables {
			out.Variables[k] = v
		}
	}
	return &out
}
