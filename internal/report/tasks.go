package report

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	PriorityCritical = "Critical"
	PriorityHigh     = "High"
	PriorityMedium   = "Medium"
	PriorityLow      = "Low"

	defaultHowToFix = "See audit report for details"
	defaultStatus   = "To Do"

	minTaskLength   = 30
	contextLines    = 15
	defaultCategory = "Technical SEO"
)

// Task is one row of the task list.
type Task struct {
	Number   int    `json:"number"`
	Task     string `json:"task"`
	Category string `json:"category"`
	Priority string `json:"priority"`
	Effort   string `json:"effort"`
	Impact   string `json:"impact"`
	HowToFix string `json:"how_to_fix"`
	Status   string `json:"status"`
}

// Structured is the optional JSON block appended by the model to full audits.
type Structured struct {
	Score   int    `json:"score"`
	Verdict string `json:"verdict"`
	Tasks   []Task `json:"tasks"`
}

var (
	taskLine       = regexp.MustCompile(`^(?:[-*•]|\d+\.)`)
	taskPrefix     = regexp.MustCompile(`^[\d\-*•.\s]+`)
	trailingCommas = regexp.MustCompile(`,\s*([}\]])`)
	contextWords   = []string{"Action", "Priority", "Quick Win", "Recommendation"}

	categoryRules = []struct {
		name  string
		words []string
	}{
		{"Content", []string{"content", "keyword", "text", "copy", "article"}},
		{"Link Building", []string{"link", "backlink", "anchor"}},
		{"On-Page SEO", []string{"meta", "title", "description", "tag", "heading"}},
		{"Performance", []string{"speed", "performance", "mobile", "core web"}},
	}
)

// ExtractTasks scans free text for action items. A priority heading switches the
// priority of the bullets that follow it; a bullet only counts when it is long
// enough and an action-plan keyword appears in the lines just above it.
func ExtractTasks(text string) []Task {
	lines := strings.Split(StripStructured(text), "\n")
	priority := PriorityMedium
	var tasks []Task
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		upper := strings.ToUpper(line)
		switch {
		case strings.Contains(upper, "CRITICAL") && (strings.Contains(line, "Week") || strings.Contains(line, "Priority")):
			priority = PriorityCritical
		case strings.Contains(upper, "HIGH PRIORITY"):
			priority = PriorityHigh
		case strings.Contains(upper, "MEDIUM PRIORITY"):
			priority = PriorityMedium
		case strings.Contains(upper, "LOW PRIORITY"):
			priority = PriorityLow
		}

		if !taskLine.MatchString(line) || utf8.RuneCountInString(line) <= minTaskLength {
			continue
		}
		if !hasActionContext(lines[max(0, i-contextLines):i]) {
			continue
		}
		name := strings.TrimSpace(taskPrefix.ReplaceAllString(line, ""))
		name = strings.TrimSpace(strings.ReplaceAll(name, "**", ""))
		effort, impact := estimate(priority)
		tasks = append(tasks, Task{
			Number:   len(tasks) + 1,
			Task:     name,
			Category: Categorize(name),
			Priority: priority,
			Effort:   effort,
			Impact:   impact,
			HowToFix: defaultHowToFix,
			Status:   defaultStatus,
		})
	}
	return tasks
}

func hasActionContext(lines []string) bool {
	joined := strings.Join(lines, " ")
	for _, word := range contextWords {
		if strings.Contains(joined, word) {
			return true
		}
	}
	return false
}

// estimate returns the default effort (hours) and impact for a priority.
func estimate(priority string) (string, string) {
	switch priority {
	case PriorityCritical:
		return "4-8", "High"
	case PriorityHigh:
		return "3-6", "High"
	case PriorityLow:
		return "1-2", "Low"
	default:
		return "2-4", "Medium"
	}
}

// Categorize assigns a task category from keywords in its text.
func Categorize(task string) string {
	lower := strings.ToLower(task)
	for _, rule := range categoryRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				return rule.name
			}
		}
	}
	return defaultCategory
}

// NormalizePriority maps free-form priority labels onto the four known levels.
func NormalizePriority(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "critical"), strings.Contains(lower, "urgent"), lower == "p0":
		return PriorityCritical
	case strings.Contains(lower, "high"), lower == "p1":
		return PriorityHigh
	case strings.Contains(lower, "low"), lower == "p3":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// ExtractStructured parses the JSON block the model appends to full audits.
// It accepts the last fenced block or a bare trailing object, tolerates trailing
// commas, and reads tasks through a set of alternate key names.
func ExtractStructured(text string) (*Structured, bool) {
	raw, ok := findJSON(text)
	if !ok {
		return nil, false
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return nil, false
	}

	out := &Structured{
		Score:   int(first(root, "score", "overall_score").Int()),
		Verdict: strings.TrimSpace(first(root, "verdict", "status").String()),
	}
	first(root, "tasks", "action_items", "actions").ForEach(func(_, item gjson.Result) bool {
		task := Task{}
		if item.Type == gjson.String {
			task.Task = strings.TrimSpace(item.String())
		} else {
			task.Task = strings.TrimSpace(first(item, "task", "title", "action").String())
			task.Priority = first(item, "priority", "level", "severity").String()
			task.Effort = effortString(first(item, "effort", "effort_hours", "hours"))
			task.Impact = strings.TrimSpace(item.Get("impact").String())
			task.Category = strings.TrimSpace(first(item, "category", "area").String())
			task.HowToFix = strings.TrimSpace(first(item, "how_to_fix", "fix", "solution").String())
		}
		if task.Task == "" {
			return true
		}
		task.Priority = NormalizePriority(task.Priority)
		effort, impact := estimate(task.Priority)
		if task.Effort == "" {
			task.Effort = effort
		}
		if task.Impact == "" {
			task.Impact = impact
		}
		if task.Category == "" {
			task.Category = Categorize(task.Task)
		}
		if task.HowToFix == "" {
			task.HowToFix = defaultHowToFix
		}
		task.Status = defaultStatus
		task.Number = len(out.Tasks) + 1
		out.Tasks = append(out.Tasks, task)
		return true
	})

	if out.Score == 0 && out.Verdict == "" && len(out.Tasks) == 0 {
		return nil, false
	}
	return out, true
}

func findJSON(text string) (string, bool) {
	var candidate string
	if matches := jsonFence.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		candidate = matches[len(matches)-1][1]
	} else {
		trimmed := strings.TrimSpace(text)
		if !strings.HasSuffix(trimmed, "}") {
			return "", false
		}
		for i := strings.LastIndex(trimmed, "\n{"); i >= 0; i = strings.LastIndex(trimmed[:i], "\n{") {
			if tail := trimmed[i+1:]; gjson.Valid(repairJSON(tail)) {
				candidate = tail
				break
			}
		}
		if candidate == "" && strings.HasPrefix(trimmed, "{") {
			candidate = trimmed
		}
	}
	candidate = repairJSON(candidate)
	if candidate == "" || !gjson.Valid(candidate) {
		return "", false
	}
	return candidate, true
}

func repairJSON(s string) string {
	return trailingCommas.ReplaceAllString(strings.TrimSpace(s), "$1")
}

func first(r gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func effortString(v gjson.Result) string {
	switch v.Type {
	case gjson.Number:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case gjson.String:
		return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v.String()), "hours"))
	default:
		return ""
	}
}

// Summary counts tasks per priority and carries the overall verdict.
type Summary struct {
	Critical int    `json:"critical"`
	High     int    `json:"high"`
	Medium   int    `json:"medium"`
	Low      int    `json:"low"`
	Total    int    `json:"total"`
	Score    int    `json:"score,omitempty"`
	Verdict  string `json:"verdict"`
}

// Summarize counts tasks and derives a verdict from the counts unless the model gave one.
func Summarize(tasks []Task, score int, verdict string) Summary {
	s := Summary{Total: len(tasks), Score: score}
	for _, t := range tasks {
		switch t.Priority {
		case PriorityCritical:
			s.Critical++
		case PriorityHigh:
			s.High++
		case PriorityLow:
			s.Low++
		default:
			s.Medium++
		}
	}
	s.Verdict = strings.TrimSpace(verdict)
	if s.Verdict != "" {
		return s
	}
	switch {
	case s.Critical >= 3:
		s.Verdict = "Needs Urgent Attention"
	case s.Critical > 0 || s.High >= 3:
		s.Verdict = "Needs Work"
	case s.High > 0:
		s.Verdict = "Promising"
	default:
		s.Verdict = "Healthy"
	}
	return s
}
