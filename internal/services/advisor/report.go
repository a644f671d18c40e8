package advisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/LeonardoBeccarini/cropsense/internal/model/messages"
)

var ErrInvalidReport = errors.New("invalid JSON structure from agent")

var (
	requiredKeys = []string{"weather", "soil", "recommendedCrops", "cropSuitability"}
	fenceRe      = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ParseReport extracts the report object from a model answer. Code fences and
// text around the object are ignored.
func ParseReport(text string) (messages.AnalysisReport, error) {
	var r messages.AnalysisReport
	body := extractJSON(text)
	if body == "" {
		return r, fmt.Errorf("%w: no JSON object in response", ErrInvalidReport)
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &keys); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return r, fmt.Errorf("%w: missing required keys %s", ErrInvalidReport, strings.Join(missing, ", "))
	}
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return r, nil
}

func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
