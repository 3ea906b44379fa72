package services

import (
	"strings"

	"github.com/hmarchena/gatewarden/internal/models"
)

// Detection is the classifier's answer for a scanned request.
type Detection struct {
	Matched  bool
	Category string
	Severity string
}

// classifierRule is one tagged detector: a category plus its signature set.
// Rules are evaluated strictly in declaration order and the first matching
// category wins, so the slice below is the documented priority ordering.
type classifierRule struct {
	category   string
	severity   string
	signatures []string
}

// ThreatClassifier is a stateless scanner over request payload, query, and
// path text. It consults no network or disk state and never suspends, so it
// cannot become a denial-of-service vector itself.
type ThreatClassifier struct {
	rules []classifierRule
}

// NewThreatClassifier builds the classifier with its fixed rule ordering:
// SQL injection is checked first, then cross-site scripting, path traversal,
// and command injection.
func NewThreatClassifier() *ThreatClassifier {
	return &ThreatClassifier{
		rules: []classifierRule{
			{
				category: models.AttackSQLInjection,
				severity: models.SeverityHigh,
				signatures: []string{
					"select ", "union ", "insert ", "delete ", "drop ", "create ",
					"' or ", "\" or ", "or 1=1", "--", "/*", "*/", "xp_", "exec sp_",
				},
			},
			{
				category: models.AttackCrossSiteScript,
				severity: models.SeverityHigh,
				signatures: []string{
					"<script", "javascript:", "onerror=", "onload=", "eval(",
					"document.cookie", "<iframe", "<img src",
				},
			},
			{
				category: models.AttackPathTraversal,
				severity: models.SeverityMedium,
				signatures: []string{
					"../", "..\\", "/etc/", "/bin/", "/usr/", "%2e%2e%2f", "....//",
				},
			},
			{
				category: models.AttackCommandInjection,
				severity: models.SeverityHigh,
				signatures: []string{
					"system(", "exec(", "; ls", "; cat", "| cat", "&& cat",
					"subprocess", "os.system", "`", "$(",
				},
			},
		},
	}
}

// Scan checks the concatenated body, query, and path text against every rule
// in priority order. Pure in-memory check.
func (c *ThreatClassifier) Scan(payload, path string) Detection {
	text := strings.ToLower(payload + " " + path)

	for _, rule := range c.rules {
		for _, sig := range rule.signatures {
			if strings.Contains(text, sig) {
				return Detection{Matched: true, Category: rule.category, Severity: rule.severity}
			}
		}
	}
	return Detection{}
}
