// Package intent classifies pasted text and suggests follow-up actions.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MaxChips caps the number of suggested actions.
const MaxChips = 3

// ContentType is the detected shape of a text.
type ContentType string

const (
	ContentJSON    ContentType = "json"
	ContentCode    ContentType = "code"
	ContentTable   ContentType = "table"
	ContentList    ContentType = "list"
	ContentProse   ContentType = "prose"
	ContentUnknown ContentType = "unknown"
)

// ActionType says how a chip is executed: by a deterministic local rule or
// by sending Payload as an instruction to the model.
type ActionType string

const (
	ActionLocalRule ActionType = "LocalRule"
	ActionAIPrompt  ActionType = "AIPrompt"
)

// ActionChip is one suggested action.
type ActionChip struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	ActionType ActionType `json:"actionType"`
	Payload    string     `json:"payload"`
	Shortcut   string     `json:"shortcut,omitempty"`
}

// Result is the outcome of Detect.
type Result struct {
	ContentType ContentType  `json:"contentType"`
	Chips       []ActionChip `json:"chips"`
}

var (
	jsonStart   = regexp.MustCompile(`^\s*[\{\[]`)
	codeKeyword = regexp.MustCompile(`(function|class|def|pub fn|const|let|var|import|#include|package)\s+\w+`)
	listItem    = regexp.MustCompile(`(?m)^(\s*[-*+•]\s+|\s*\d+[.)]\s+)`)
	urlPattern  = regexp.MustCompile(`https?://\S+`)
)

type chipSpec struct {
	label   string
	action  ActionType
	payload string
}

var catalog = map[ContentType][]chipSpec{
	ContentJSON: {
		{"Format JSON", ActionAIPrompt, "Format this JSON with proper indentation"},
		{"Minify JSON", ActionAIPrompt, "Minify this JSON to a single line"},
		{"Convert to YAML", ActionAIPrompt, "Convert this JSON to YAML format"},
	},
	ContentCode: {
		{"Add comments", ActionAIPrompt, "Add clear comments to explain this code"},
		{"Refactor", ActionAIPrompt, "Refactor this code for better readability and performance"},
		{"Explain code", ActionAIPrompt, "Explain what this code does in simple terms"},
	},
	ContentTable: {
		{"To Markdown table", ActionAIPrompt, "Convert this table to Markdown table format"},
		{"Extract first column", ActionAIPrompt, "Extract only the first column values"},
		{"Sort rows", ActionAIPrompt, "Sort this table by the first column"},
	},
	ContentList: {
		{"Sort list", ActionLocalRule, "sort_list"},
		{"Remove duplicates", ActionAIPrompt, "Remove duplicate items from this list"},
		{"To comma-separated", ActionAIPrompt, "Convert this list to comma-separated values"},
	},
	ContentUnknown: {
		{"Remove empty lines", ActionLocalRule, "remove_empty_lines"},
		{"Trim whitespace", ActionLocalRule, "trim_whitespace"},
		{"Collapse spaces", ActionLocalRule, "collapse_spaces"},
	},
}

var (
	summarize    = chipSpec{"Summarize", ActionAIPrompt, "Summarize the key points of this text in bullet points"}
	fixGrammar   = chipSpec{"Fix grammar", ActionAIPrompt, "Fix grammar and spelling errors"}
	extractLinks = chipSpec{"Extract links", ActionLocalRule, "extract_urls"}
	translate    = chipSpec{"Translate to English", ActionAIPrompt, "Translate this text to English"}
)

// Detect classifies text and returns up to MaxChips suggested actions.
// Empty text yields ContentUnknown and no chips.
func Detect(text string) Result {
	if text == "" {
		return Result{ContentType: ContentUnknown, Chips: []ActionChip{}}
	}
	ct := DetectContentType(text)
	return Result{ContentType: ct, Chips: chipsFor(ct, text)}
}

// DetectContentType returns the shape of text. Checks run in a fixed order:
// JSON, code, table, list, prose.
func DetectContentType(text string) ContentType {
	trimmed := strings.TrimSpace(text)
	if jsonStart.MatchString(trimmed) && (strings.HasSuffix(trimmed, "}") || strings.HasSuffix(trimmed, "]")) {
		return ContentJSON
	}

	if codeKeyword.MatchString(text) {
		return ContentCode
	}

	lines := splitLines(text)
	if len(lines) >= 2 {
		indented := 0
		for _, l := range lines {
			if strings.HasPrefix(l, "    ") || strings.HasPrefix(l, "\t") {
				indented++
			}
		}
		if indented >= len(lines)/3 && indented >= 2 {
			return ContentCode
		}

		tabs, commas := 0, 0
		for _, l := range lines {
			if strings.Contains(l, "\t") {
				tabs++
			}
			if strings.Count(l, ",") >= 2 {
				commas++
			}
		}
		if tabs >= len(lines)/2 || commas >= len(lines)/2 {
			return ContentTable
		}
	}

	if len(listItem.FindAllStringIndex(text, -1)) >= 2 {
		return ContentList
	}

	if strings.Count(text, ".")+strings.Count(text, "!")+strings.Count(text, "?") >= 2 && len(text) > 50 {
		return ContentProse
	}

	return ContentUnknown
}

func chipsFor(ct ContentType, text string) []ActionChip {
	var specs []chipSpec
	if ct == ContentProse {
		if len(text) > 500 {
			specs = append(specs, summarize)
		}
		specs = append(specs, fixGrammar)
		if urlPattern.MatchString(text) {
			specs = append(specs, extractLinks)
		} else {
			specs = append(specs, translate)
		}
	} else {
		specs = catalog[ct]
	}
	if len(specs) > MaxChips {
		specs = specs[:MaxChips]
	}

	chips := make([]ActionChip, len(specs))
	for i, s := range specs {
		chips[i] = ActionChip{
			ID:         uuid.NewString(),
			Label:      s.label,
			ActionType: s.action,
			Payload:    s.payload,
			Shortcut:   strconv.Itoa(i + 1),
		}
	}
	return chips
}

// splitLines splits on newlines without a trailing empty line.
func splitLines(text string) []string {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
