// Package classifier maps free-text operational requests to a task
// category, required-capability set and approval flag using deterministic
// keyword scoring. No language-model call is involved.
package classifier

import (
	"strings"

	"github.com/opspilot/opspilot/internal/domain/model"
)

// Keyword sets per category. Matching is case-insensitive substring
// containment, mirroring how operators actually phrase requests
// ("Get-Service", "az vm list", "restart nginx").
var (
	simpleKeywords = []string{
		"check", "verify", "read", "list", "show",
		"get", "find", "search", "query", "status",
	}

	complexKeywords = []string{
		"analyze", "investigate", "diagnose", "monitor",
		"script", "automate", "generate", "create",
		"document", "report", "email", "notify",
	}

	criticalKeywords = []string{
		"delete", "remove", "uninstall", "drop", "truncate",
		"shutdown", "restart", "reboot", "format", "wipe",
		"production", "prod", "critical", "important",
		"admin", "root", "system", "security",
	}
)

// Read operations never require approval, even in a production context.
// Script generation counts as read-only: the system only plans, it never
// executes.
var readOnlyKeywords = []string{
	"get-", "show-", "list-", "query", "status",
	"check", "verify", "read", "find", "search",
	"analyze", "investigate", "diagnose", "monitor",
	"generate", "create", "script",
}

// System-modification keywords that gate execution behind approval
var modificationKeywords = []string{
	"delete", "remove", "uninstall", "drop", "truncate",
	"shutdown", "restart", "reboot", "format", "wipe",
	"lock", "disable", "enable",
}

// PowerShell/CLI modification verbs caught in command form
var modificationCommands = []string{
	"set-", "remove-", "delete-", "uninstall-",
	"format", "wipe", "clear", "reset", "lock",
	"disable", "enable", "restart", "shutdown",
}

// Critical-environment context keywords
var productionKeywords = []string{
	"production", "prod", "critical", "important",
	"admin", "root", "system", "security",
}

// Classifier scores request text against the keyword sets.
// The zero value is not usable; construct with New.
type Classifier struct {
	// tiePrecedence orders categories from least to most preferred on a
	// score tie. The default prefers the lower-risk category.
	tiePrecedence []model.Category
}

// Option configures a Classifier
type Option func(*Classifier)

// WithTiePrecedence overrides the tie-break order, listed from least to
// most preferred
func WithTiePrecedence(order []model.Category) Option {
	return func(c *Classifier) {
		if len(order) == 3 {
			c.tiePrecedence = order
		}
	}
}

// New creates a Classifier. By default ties between equal keyword scores
// resolve to the lower-risk category (simple beats complex beats
// critical).
func New(opts ...Option) *Classifier {
	c := &Classifier{
		tiePrecedence: []model.Category{
			model.CategoryCritical, model.CategoryComplex, model.CategorySimple,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify analyzes request text and returns its classification
func (c *Classifier) Classify(text string) model.Classification {
	category := c.categorize(text)

	return model.Classification{
		Category:             category,
		RequiredCapabilities: requiredCapabilities(category),
		RequiresApproval:     requiresApproval(text),
		Complexity:           complexityFor(category),
		RiskLevel:            riskFor(category),
	}
}

// categorize picks the category with the strictly highest keyword score.
// On a tie the later entry in tiePrecedence wins, so with the default
// order an all-zero or evenly matched request classifies as simple.
func (c *Classifier) categorize(text string) model.Category {
	lower := strings.ToLower(text)

	scores := map[model.Category]int{
		model.CategorySimple:   countMatches(lower, simpleKeywords),
		model.CategoryComplex:  countMatches(lower, complexKeywords),
		model.CategoryCritical: countMatches(lower, criticalKeywords),
	}

	best := c.tiePrecedence[0]
	for _, candidate := range c.tiePrecedence[1:] {
		if scores[candidate] >= scores[best] {
			best = candidate
		}
	}
	return best
}

func requiredCapabilities(category model.Category) []model.Capability {
	switch category {
	case model.CategoryCritical, model.CategoryComplex:
		return model.AllCapabilities()
	default:
		return []model.Capability{model.CapabilityDiagnose}
	}
}

// requiresApproval decides whether the request must pass the approval
// gate. The read-only check runs first and wins outright: a read-only
// request bypasses approval even when it names a production environment
// or contains a modification keyword elsewhere in the sentence.
func requiresApproval(text string) bool {
	lower := strings.ToLower(text)

	if matchesAny(lower, readOnlyKeywords) {
		return false
	}
	if matchesAny(lower, modificationKeywords) {
		return true
	}
	if matchesAny(lower, modificationCommands) {
		return true
	}
	if matchesAny(lower, productionKeywords) {
		return true
	}
	return false
}

func complexityFor(category model.Category) model.Level {
	if category == model.CategoryComplex || category == model.CategoryCritical {
		return model.LevelHigh
	}
	return model.LevelLow
}

func riskFor(category model.Category) model.Level {
	switch category {
	case model.CategoryCritical:
		return model.LevelHigh
	case model.CategoryComplex:
		return model.LevelMedium
	default:
		return model.LevelLow
	}
}

func countMatches(lower string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
