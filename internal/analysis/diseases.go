package analysis

import (
	"strings"
)

// DetectDiseases returns the keywords found in lines, title-cased, in order of
// first occurrence. A keyword counts when it appears anywhere in a line, including
// inside a longer word. Each keyword is reported once.
func DetectDiseases(lines []string, keywords []string) []string {
	title := titleCaser()
	detected := []string{}
	seen := make(map[string]bool, len(keywords))

	for _, line := range lines {
		for _, keyword := range keywords {
			kw := canonical(keyword)
			if kw == "" || seen[kw] {
				continue
			}
			if strings.Contains(line, kw) {
				seen[kw] = true
				detected = append(detected, title.String(kw))
			}
		}
	}

	return detected
}
