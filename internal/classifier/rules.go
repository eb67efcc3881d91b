package classifier

import (
	"regexp"
	"strings"
)

// Rule is one ordered heuristic: keyword membership plus an optional
// regex, exclusion, and predicate. Rules are evaluated in table order
// and the first match wins, so broader rules belong later.
type Rule struct {
	ID          string
	Category    Category
	Subcategory string
	Keywords    []string       // at least one must appear, when set
	Regex       *regexp.Regexp // must match, when set
	Exclude     *regexp.Regexp // must not match, when set
	When        func(msg string) bool
	Confidence  float64
}

// Matches checks the rule against a normalized (lowercased) message.
func (r *Rule) Matches(msg string) bool {
	if len(r.Keywords) > 0 {
		found := false
		for _, kw := range r.Keywords {
			if strings.Contains(msg, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.Exclude != nil && r.Exclude.MatchString(msg) {
		return false
	}
	if r.Regex != nil && !r.Regex.MatchString(msg) {
		return false
	}
	if r.When != nil && !r.When(msg) {
		return false
	}
	return true
}

// fileTokenRegex spots filename-like tokens ("main.go", "sales.csv").
var fileTokenRegex = regexp.MustCompile(`\b[\w\-.]+\.[a-z0-9]{1,8}\b`)

func countFileTokens(msg string) int {
	return len(fileTokenRegex.FindAllString(msg, -1))
}

// defaultRules returns the ordered rule table.
//
// Order carries the disambiguation policy: action-verb rules (list,
// find, read, run) come before the bare location patterns so that
// "list the files in the current directory" resolves to file_search
// rather than location_query, data analysis outranks the financial
// keywords so "compare a.csv and b.csv" stays local, and multi-target
// detection outranks file_read so "show a.py and b.py" becomes a
// search.
func defaultRules() []*Rule {
	return []*Rule{
		{
			ID:          "conversation_greeting",
			Category:    CategoryConversation,
			Subcategory: SubGreeting,
			Regex:       regexp.MustCompile(`^\s*(?:hi|hiya|hello|hey|yo|howdy|thanks|thank\s+you|good\s+(?:morning|afternoon|evening)|how\s+are\s+you)(?:\s+there|\s+otto)?[\s!.,?]*$`),
			Confidence:  0.95,
		},
		{
			ID:         "file_search_list",
			Category:   CategoryFileSearch,
			Keywords:   []string{"file", "folder", "director"},
			Regex:      regexp.MustCompile(`\b(?:list|show|enumerate)\b.*\b(?:files|folders|directories)\b`),
			Confidence: 0.95,
		},
		{
			ID:         "file_search_find",
			Category:   CategoryFileSearch,
			Keywords:   []string{"find", "search", "locate", "look for", "grep"},
			Regex:      regexp.MustCompile(`\b(?:find|search|locate|look\s+for|grep)\b.*(?:\bfiles?\b|\*\.\w+)`),
			Confidence: 0.95,
		},
		{
			ID:          "data_analysis",
			Category:    CategoryDataAnalysis,
			Subcategory: "csv",
			Keywords:    []string{".csv", "dataset", "spreadsheet"},
			Regex:       regexp.MustCompile(`\b(?:analy[sz]e|summar(?:ize|ise|y)|stat(?:s|istics)?|average|mean|median|describe|compare|crunch)\b`),
			Confidence:  0.9,
		},
		{
			ID:          "file_search_multi",
			Category:    CategoryFileSearch,
			Subcategory: "multi",
			When:        func(msg string) bool { return countFileTokens(msg) >= 2 },
			Confidence:  0.9,
		},
		{
			ID:         "file_read",
			Category:   CategoryFileRead,
			Regex:      regexp.MustCompile(`\b(?:read|open|display|view|cat|print|show)\b.*(?:[\w\-.]+\.[a-z0-9]{1,8}\b|\bfile\b|\bcontents\b|\breadme\b)`),
			Confidence: 0.9,
		},
		{
			ID:         "shell_execution",
			Category:   CategoryShellExecution,
			Keywords:   []string{"run", "execute", "exec", "launch", "command"},
			Regex:      regexp.MustCompile("\\b(?:run|execute|exec|launch)\\b\\s+\\S+|`[^`]+`"),
			Confidence: 0.9,
		},
		{
			ID:          "remote_financial",
			Category:    CategoryRemoteTool,
			Subcategory: "financial",
			Keywords: []string{
				"revenue", "stock price", "share price", "market cap",
				"earnings", "profit", "valuation", "quarterly", "financials",
			},
			Exclude:    fileTokenRegex,
			Confidence: 0.85,
		},
		{
			ID:          "remote_research",
			Category:    CategoryRemoteTool,
			Subcategory: "research",
			Keywords: []string{
				"paper", "citation", "publication", "arxiv", "journal",
				"doi", "bibliography",
			},
			Exclude:    fileTokenRegex,
			Confidence: 0.85,
		},
		{
			ID:         "location_query",
			Category:   CategoryLocationQuery,
			Keywords:   []string{"pwd", "cwd", "where", "directory", "folder", "location"},
			Regex:      regexp.MustCompile(`^(?:pwd|cwd)\W*$|\bwhere\s+am\s+i\b|\b(?:current|present|working)\s+(?:working\s+)?(?:directory|folder|dir)\b|\bwhat\s+(?:directory|folder|dir)\b`),
			Confidence: 0.95,
		},
		{
			ID:          "conversation_creative",
			Category:    CategoryConversation,
			Subcategory: "creative",
			Keywords:    []string{"joke", "story", "poem"},
			Regex:       regexp.MustCompile(`\b(?:tell|write|give|make)\b.*\b(?:joke|story|poem)\b`),
			Confidence:  0.85,
		},
		// Bare questions stay below the confidence gate: they hint at
		// conversation but defer to the model fallback.
		{
			ID:          "conversation_question",
			Category:    CategoryConversation,
			Subcategory: "question",
			Regex:       regexp.MustCompile(`^(?:what|how|why|when|where|who|which)\b`),
			Confidence:  0.6,
		},
	}
}
