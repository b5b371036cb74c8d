package agentgate

import (
	"os"
	"path"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// rule defines a single classification rule. Each rule has a Name and one or
// both match functions. Match operates on a raw shell command string while
// MatchArgs operates on a parsed program name and argument list.
type rule struct {
	// Name is a short, unique identifier for this rule (e.g. "fork-bomb").
	Name string

	// Match inspects a raw shell command string. It returns a ClassifyResult
	// and true if the rule matches, or a zero value and false otherwise.
	Match func(command string) (ClassifyResult, bool)

	// MatchArgs inspects a parsed command (program name + args). It returns a
	// ClassifyResult and true if the rule matches, or a zero value and false
	// otherwise.
	MatchArgs func(name string, args []string) (ClassifyResult, bool)
}

// ruleClassifier implements Classifier by evaluating an ordered list of rules.
type ruleClassifier struct {
	rules []rule
}

// Classify iterates through rules in order and returns the first match.
// If no rule matches the command is classified as Sandboxed.
func (c *ruleClassifier) Classify(command string) ClassifyResult {
	for _, r := range c.rules {
		if r.Match != nil {
			if result, ok := r.Match(command); ok {
				return result
			}
		}
	}
	return ClassifyResult{
		Decision: Sandboxed,
		Reason:   "no rule matched; defaulting to sandboxed execution",
	}
}

// ClassifyArgs iterates through rules in order using MatchArgs, falling back
// to Match with a reconstructed command string. If no rule matches the command
// is classified as Sandboxed.
func (c *ruleClassifier) ClassifyArgs(name string, args []string) ClassifyResult {
	// Build a command string for rules that only implement Match.
	parts := make([]string, 0, 1+len(args))
	parts = append(parts, name)
	parts = append(parts, args...)
	command := strings.Join(parts, " ")

	for _, r := range c.rules {
		if r.MatchArgs != nil {
			if result, ok := r.MatchArgs(name, args); ok {
				return result
			}
		}
		if r.Match != nil {
			if result, ok := r.Match(command); ok {
				return result
			}
		}
	}
	return ClassifyResult{
		Decision: Sandboxed,
		Reason:   "no rule matched; defaulting to sandboxed execution",
	}
}

// defaultClassifier caches the singleton DefaultClassifier instance.
var (
	defaultClassifierOnce sync.Once
	defaultClassifierInst Classifier
)

// DefaultClassifier returns a Classifier pre-loaded with the built-in rules.
// Rules are evaluated in priority order: forbidden, auto, escalated.
// The classifier is stateless and immutable, so it is cached after first creation.
func DefaultClassifier() Classifier {
	defaultClassifierOnce.Do(func() {
		defaultClassifierInst = &ruleClassifier{rules: defaultRules()}
	})
	return defaultClassifierInst
}

// defaultRules returns the built-in rules in priority order.
func defaultRules() []rule {
	forbidden := forbiddenRules()
	auto := autoRules()
	escalated := escalatedRules()
	rules := make([]rule, 0, len(forbidden)+len(auto)+len(escalated))
	rules = append(rules, forbidden...)
	rules = append(rules, auto...)
	rules = append(rules, escalated...)
	return rules
}

// baseCommand strips any directory prefix and a trailing .exe suffix so that
// "/usr/bin/rm" and "rm.exe" both classify as "rm".
func baseCommand(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, ".exe")
}

// splitCommand tokenizes a shell command string on whitespace. This is a
// deliberate approximation: classification rules only need the verb and
// coarse flag/target shapes, not full shell parsing.
func splitCommand(command string) []string {
	return strings.Fields(command)
}

// ---------------------------------------------------------------------------
// Forbidden rules (highest priority)
// ---------------------------------------------------------------------------

func forbiddenRules() []rule {
	return []rule{
		forkBombRule(),
		recursiveDeleteRootRule(),
		diskWipeRule(),
	}
}

func forkBombRule() rule {
	match := func(command string) (ClassifyResult, bool) {
		normalized := strings.Join(strings.Fields(command), " ")
		if strings.Contains(normalized, ":(){ :|:& };:") ||
			strings.Contains(normalized, ":(){ :|: & };:") {
			return ClassifyResult{
				Decision: Forbidden,
				Reason:   "fork bomb detected",
				Rule:     "fork-bomb",
			}, true
		}
		return ClassifyResult{}, false
	}
	return rule{
		Name:  "fork-bomb",
		Match: match,
		MatchArgs: func(name string, args []string) (ClassifyResult, bool) {
			parts := append([]string{name}, args...)
			return match(strings.Join(parts, " "))
		},
	}
}

// rmFlags reports whether an rm argument list carries recursive and force flags.
func rmFlags(args []string) (recursive, force bool) {
	for _, a := range args {
		if a == "--" {
			break
		}
		switch {
		case a == "--recursive":
			recursive = true
		case a == "--force":
			force = true
		case strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--"):
			if strings.ContainsAny(a, "rR") {
				recursive = true
			}
			if strings.Contains(a, "f") {
				force = true
			}
		}
	}
	return recursive, force
}

// isDangerousDeleteTarget reports whether a path argument points at the
// filesystem root or the user's home directory.
func isDangerousDeleteTarget(arg string) bool {
	if strings.HasPrefix(arg, "-") {
		return false
	}
	cleaned := strings.TrimSuffix(arg, "/")
	switch cleaned {
	case "", "/", "/*", "~", "$HOME", "${HOME}":
		return arg != "" // bare "" only arises from trailing "/"
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if cleaned == home || cleaned == home+"/*" {
			return true
		}
	}
	return false
}

func recursiveDeleteRootRule() rule {
	matchArgs := func(name string, args []string) (ClassifyResult, bool) {
		if baseCommand(name) != "rm" {
			return ClassifyResult{}, false
		}
		recursive, force := rmFlags(args)
		if !recursive || !force {
			return ClassifyResult{}, false
		}
		for _, a := range args {
			if isDangerousDeleteTarget(a) {
				return ClassifyResult{
					Decision: Forbidden,
					Reason:   "recursive deletion of root or home directory",
					Rule:     "recursive-delete-root",
				}, true
			}
		}
		return ClassifyResult{}, false
	}
	return rule{
		Name:      "recursive-delete-root",
		MatchArgs: matchArgs,
		Match: func(command string) (ClassifyResult, bool) {
			fields := splitCommand(command)
			if len(fields) == 0 {
				return ClassifyResult{}, false
			}
			return matchArgs(fields[0], fields[1:])
		},
	}
}

func diskWipeRule() rule {
	matchArgs := func(name string, args []string) (ClassifyResult, bool) {
		base := baseCommand(name)
		if base != "dd" && base != "mkfs" && !strings.HasPrefix(base, "mkfs.") {
			return ClassifyResult{}, false
		}
		for _, a := range args {
			target := strings.TrimPrefix(a, "of=")
			if strings.HasPrefix(target, "/dev/sd") ||
				strings.HasPrefix(target, "/dev/nvme") ||
				strings.HasPrefix(target, "/dev/disk") ||
				strings.HasPrefix(target, "/dev/hd") {
				return ClassifyResult{
					Decision: Forbidden,
					Reason:   "write to raw block device",
					Rule:     "disk-wipe",
				}, true
			}
		}
		return ClassifyResult{}, false
	}
	return rule{
		Name:      "disk-wipe",
		MatchArgs: matchArgs,
		Match: func(command string) (ClassifyResult, bool) {
			fields := splitCommand(command)
			if len(fields) == 0 {
				return ClassifyResult{}, false
			}
			return matchArgs(fields[0], fields[1:])
		},
	}
}

// ---------------------------------------------------------------------------
// Auto rules (known-safe read-only verbs)
// ---------------------------------------------------------------------------

// safeVerbs are read-only commands that cannot mutate state and are
// auto-approved at every policy level.
var safeVerbs = map[string]struct{}{
	"ls": {}, "dir": {}, "cat": {}, "type": {}, "more": {}, "head": {},
	"tail": {}, "pwd": {}, "echo": {}, "wc": {}, "which": {}, "whoami": {},
	"date": {}, "uname": {}, "stat": {}, "file": {}, "du": {}, "df": {},
	"env": {}, "printenv": {}, "grep": {}, "rg": {}, "find": {}, "tree": {},
}

// safeGitSubcommands are git operations that only read repository state.
var safeGitSubcommands = map[string]struct{}{
	"status": {}, "log": {}, "diff": {}, "show": {}, "branch": {},
	"remote": {}, "blame": {},
}

func autoRules() []rule {
	return []rule{safeVerbRule(), safeGitRule()}
}

func safeVerbRule() rule {
	matchArgs := func(name string, args []string) (ClassifyResult, bool) {
		base := baseCommand(name)
		if _, ok := safeVerbs[base]; !ok {
			return ClassifyResult{}, false
		}
		// A safe verb feeding a pipe or redirect is no longer just a read.
		for _, a := range args {
			if strings.ContainsAny(a, "|>;&`") {
				return ClassifyResult{}, false
			}
		}
		return ClassifyResult{
			Decision: Auto,
			Reason:   "known-safe read-only command",
			Rule:     "safe-verb",
		}, true
	}
	return rule{
		Name:      "safe-verb",
		MatchArgs: matchArgs,
		Match: func(command string) (ClassifyResult, bool) {
			if strings.ContainsAny(command, "|>;&`$(") {
				return ClassifyResult{}, false
			}
			fields := splitCommand(command)
			if len(fields) == 0 {
				return ClassifyResult{}, false
			}
			return matchArgs(fields[0], fields[1:])
		},
	}
}

func safeGitRule() rule {
	matchArgs := func(name string, args []string) (ClassifyResult, bool) {
		if baseCommand(name) != "git" || len(args) == 0 {
			return ClassifyResult{}, false
		}
		sub := args[0]
		if _, ok := safeGitSubcommands[sub]; !ok {
			return ClassifyResult{}, false
		}
		return ClassifyResult{
			Decision: Auto,
			Reason:   "read-only git subcommand",
			Rule:     "safe-git",
		}, true
	}
	return rule{
		Name:      "safe-git",
		MatchArgs: matchArgs,
		Match: func(command string) (ClassifyResult, bool) {
			if strings.ContainsAny(command, "|>;&`$(") {
				return ClassifyResult{}, false
			}
			fields := splitCommand(command)
			if len(fields) == 0 {
				return ClassifyResult{}, false
			}
			return matchArgs(fields[0], fields[1:])
		},
	}
}

// ---------------------------------------------------------------------------
// Escalated rules (destructive verbs; require user approval)
// ---------------------------------------------------------------------------

// protectedPathPatterns are glob patterns for files no agent command should
// touch without an explicit user decision.
var protectedPathPatterns = []string{
	"**/.ssh/**",
	"**/.aws/**",
	"**/.gnupg/**",
	"**/.git/hooks/**",
	"/etc/**",
}

var (
	protectedGlobsOnce sync.Once
	protectedGlobs     []glob.Glob
)

// compiledProtectedGlobs compiles protectedPathPatterns once. Patterns are
// static, so compilation cannot fail at runtime; a bad pattern would panic
// in tests immediately.
func compiledProtectedGlobs() []glob.Glob {
	protectedGlobsOnce.Do(func() {
		protectedGlobs = make([]glob.Glob, 0, len(protectedPathPatterns))
		for _, p := range protectedPathPatterns {
			protectedGlobs = append(protectedGlobs, glob.MustCompile(p, '/'))
		}
	})
	return protectedGlobs
}

// escalatedVerbs always require a user decision, whatever the policy level.
var escalatedVerbs = map[string]string{
	"sudo":     "privilege escalation",
	"doas":     "privilege escalation",
	"shutdown": "system power control",
	"reboot":   "system power control",
	"mkswap":   "storage reconfiguration",
}

func escalatedRules() []rule {
	return []rule{
		escalatedVerbRule(),
		recursiveDeleteRule(),
		protectedPathRule(),
		forcePushRule(),
	}
}

func escalatedVerbRule() rule {
	matchArgs := func(name string, args []string) (ClassifyResult, bool) {
		if reason, ok := escalatedVerbs[baseCommand(name)]; ok {
			return ClassifyResult{
				Decision: Escalated,
				Reason:   reason,
				Rule:     "escalated-verb",
			}, true
		}
		return ClassifyResult{}, false
	}
	return rule{
		Name:      "escalated-verb",
		MatchArgs: matchArgs,
		Match: func(command string) (ClassifyResult, bool) {
			fields := splitCommand(command)
			if len(fields) == 0 {
				return ClassifyResult{}, false
			}
			return matchArgs(fields[0], fields[1:])
		},
	}
}

// recursiveDeleteRule escalates rm -rf of ordinary paths. Deletion of root
// or home is caught earlier by the forbidden rule.
func recursiveDeleteRule() rule {
	matchArgs := func(name string, args []string) (ClassifyResult, bool) {
		if baseCommand(name) != "rm" {
			return ClassifyResult{}, false
		}
		recursive, force := rmFlags(args)
		if !recursive || !force {
			return ClassifyResult{}, false
		}
		return ClassifyResult{
			Decision: Escalated,
			Reason:   "recursive forced deletion",
			Rule:     "recursive-delete",
		}, true
	}
	return rule{
		Name:      "recursive-delete",
		MatchArgs: matchArgs,
		Match: func(command string) (ClassifyResult, bool) {
			fields := splitCommand(command)
			if len(fields) == 0 {
				return ClassifyResult{}, false
			}
			return matchArgs(fields[0], fields[1:])
		},
	}
}

func protectedPathRule() rule {
	matchArgs := func(name string, args []string) (ClassifyResult, bool) {
		globs := compiledProtectedGlobs()
		for _, a := range args {
			if strings.HasPrefix(a, "-") {
				continue
			}
			for _, g := range globs {
				if g.Match(a) {
					return ClassifyResult{
						Decision: Escalated,
						Reason:   "touches protected path " + a,
						Rule:     "protected-path",
					}, true
				}
			}
		}
		return ClassifyResult{}, false
	}
	return rule{
		Name:      "protected-path",
		MatchArgs: matchArgs,
		Match: func(command string) (ClassifyResult, bool) {
			fields := splitCommand(command)
			if len(fields) == 0 {
				return ClassifyResult{}, false
			}
			return matchArgs(fields[0], fields[1:])
		},
	}
}

func forcePushRule() rule {
	matchArgs := func(name string, args []string) (ClassifyResult, bool) {
		if baseCommand(name) != "git" || len(args) == 0 || args[0] != "push" {
			return ClassifyResult{}, false
		}
		for _, a := range args[1:] {
			if a == "--force" || a == "-f" || strings.HasPrefix(a, "--force-with-lease") {
				return ClassifyResult{
					Decision: Escalated,
					Reason:   "force push rewrites remote history",
					Rule:     "force-push",
				}, true
			}
		}
		return ClassifyResult{}, false
	}
	return rule{
		Name:      "force-push",
		MatchArgs: matchArgs,
		Match: func(command string) (ClassifyResult, bool) {
			fields := splitCommand(command)
			if len(fields) == 0 {
				return ClassifyResult{}, false
			}
			return matchArgs(fields[0], fields[1:])
		},
	}
}
