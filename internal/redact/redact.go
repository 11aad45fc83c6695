package redact

import "regexp"

// Applied names the secret categories a redaction pass hit.
type Applied struct {
	Names []string
}

type rule struct {
	name string
	re   *regexp.Regexp
	repl string
}

// Ordered most-specific first so generic shapes cannot shadow narrower ones
// (sk-ant- keys would otherwise be eaten by the OpenAI rule).
var rules = []rule{
	{"private_key", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), "[REDACTED:PRIVATE_KEY]"},
	{"github_token", regexp.MustCompile(`\b(?:gh[opsu]_[A-Za-z0-9]{10,}|github_pat_[A-Za-z0-9_]{10,})\b`), "[REDACTED:GITHUB_TOKEN]"},
	{"slack_token", regexp.MustCompile(`\bxox[abprs]-[A-Za-z0-9-]{10,}\b`), "[REDACTED:SLACK_TOKEN]"},
	{"aws_access_key_id", regexp.MustCompile(`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`), "[REDACTED:AWS_ACCESS_KEY_ID]"},
	{"anthropic_key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{10,}\b`), "[REDACTED:ANTHROPIC_KEY]"},
	{"openai_key", regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{10,}\b`), "[REDACTED:OPENAI_KEY]"},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{6,}\.[A-Za-z0-9_-]{6,}\.[A-Za-z0-9_-]{6,}\b`), "[REDACTED:JWT]"},
	{"bearer_token", regexp.MustCompile(`(?i)\b(bearer)[ \t]+[A-Za-z0-9._~+/=-]{16,}`), "$1 [REDACTED:BEARER_TOKEN]"},
}

// Text scrubs well-known credential shapes from captured process output.
// App previews end up in run.json and the archive, so anything a cookbook
// prints must be safe to keep. Patterns stay anchored to real token shapes;
// missing an exotic secret is safer than scrubbing prose.
func Text(s string) (string, Applied) {
	applied := Applied{}
	out := s
	for _, r := range rules {
		if !r.re.MatchString(out) {
			continue
		}
		out = r.re.ReplaceAllString(out, r.repl)
		applied.Names = append(applied.Names, r.name)
	}
	return out, applied
}
