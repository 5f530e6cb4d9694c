package propagate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/moderncpp/versync/internal/snapshot"
)

// Error variables for planning errors
var (
	// ErrNoVerGroup is returned when a rule pattern lacks the "ver" capture group
	ErrNoVerGroup = errors.New(`rule pattern must contain a capture group named "ver"`)
	// ErrOverlappingRules is returned when two rules match overlapping spans in one artifact
	ErrOverlappingRules = errors.New("rules match overlapping spans")
)

// Mismatch records a rule that could not act on its artifact.
// Mismatches are never fatal; they are reported so an operator can detect
// documentation drift.
type Mismatch struct {
	// Artifact is the target file path relative to the repository root
	Artifact string
	// Rule is the name of the rule that found nothing to do
	Rule string
	// Reason explains the mismatch (missing artifact, zero matches, unknown version)
	Reason string
}

// Replacement records one planned token rewrite.
type Replacement struct {
	// Rule is the name of the rule that produced this replacement
	Rule string
	// Line is the 1-based line number of the rewritten token
	Line int
	// Old is the version token currently in the artifact
	Old string
	// New is the token the snapshot dictates
	New string
}

// FileChange holds the planned content of one target artifact.
type FileChange struct {
	// Artifact is the path relative to the repository root
	Artifact string
	// AbsPath is the resolved on-disk location
	AbsPath string
	// Original is the artifact content as read
	Original []byte
	// Updated is the content after applying all rule replacements
	Updated []byte
	// Replacements lists the individual token rewrites, in file order
	Replacements []Replacement
}

// Changed reports whether applying the plan would modify this artifact.
func (fc *FileChange) Changed() bool {
	return len(fc.Replacements) > 0
}

// Plan is the full set of replacements a propagation run would perform.
// Nothing is written while planning; Apply performs the writes.
type Plan struct {
	// Files holds one entry per target artifact that was read, changed or not
	Files []FileChange
	// Mismatches lists rules that matched zero occurrences or lacked an artifact
	Mismatches []Mismatch
	// Skipped lists rules whose snapshot value is the unknown sentinel
	Skipped []Mismatch
}

// HasChanges reports whether any artifact would be modified.
func (p *Plan) HasChanges() bool {
	for i := range p.Files {
		if p.Files[i].Changed() {
			return true
		}
	}
	return false
}

// ChangedFiles returns the artifacts the plan would modify.
func (p *Plan) ChangedFiles() []*FileChange {
	var changed []*FileChange
	for i := range p.Files {
		if p.Files[i].Changed() {
			changed = append(changed, &p.Files[i])
		}
	}
	return changed
}

// Planner computes propagation plans for a repository.
type Planner struct {
	repoPath string
	rules    []Rule
	// nowFunc allows injecting time for testing (date cells in version tables)
	nowFunc func() time.Time
}

// PlannerOption is a functional option for configuring Planner
type PlannerOption func(*Planner)

// WithRules sets a custom rule table
func WithRules(rules []Rule) PlannerOption {
	return func(p *Planner) {
		p.rules = rules
	}
}

// WithPlannerNowFunc sets a custom time function for testing
func WithPlannerNowFunc(fn func() time.Time) PlannerOption {
	return func(p *Planner) {
		p.nowFunc = fn
	}
}

// NewPlanner creates a planner for the repository rooted at repoPath,
// using the default rule table unless overridden.
// It validates that every rule pattern carries the "ver" capture group.
func NewPlanner(repoPath string, opts ...PlannerOption) (*Planner, error) {
	p := &Planner{
		repoPath: repoPath,
		rules:    DefaultRules(),
		nowFunc:  time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	for _, r := range p.rules {
		if r.Pattern.SubexpIndex("ver") < 0 {
			return nil, fmt.Errorf("%w: rule %s", ErrNoVerGroup, r.Name)
		}
	}

	return p, nil
}

// span is a matched region of an artifact, used for overlap detection.
type span struct {
	start, end int
	rule       string
}

// edit is a single region replacement within an artifact.
type edit struct {
	start, end int
	text       string
}

// Plan computes the full set of replacements for the snapshot without
// touching any file. Rules bound to an unknown version are skipped, rules
// with zero matches are reported as mismatches, and a rule set where two
// rules claim overlapping text is rejected as a defect.
func (p *Planner) Plan(snap *snapshot.Snapshot) (*Plan, error) {
	plan := &Plan{}
	dateCell := p.nowFunc().Format("Jan 2006")

	for _, artifact := range Artifacts(p.rules) {
		absPath := filepath.Join(p.repoPath, artifact)

		content, err := os.ReadFile(absPath)
		if err != nil {
			if os.IsNotExist(err) {
				// Missing artifact: every rule on it is a mismatch, not a failure
				for _, r := range p.rulesFor(artifact) {
					plan.Mismatches = append(plan.Mismatches, Mismatch{
						Artifact: artifact,
						Rule:     r.Name,
						Reason:   "artifact not found",
					})
				}
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", artifact, err)
		}

		fc := FileChange{
			Artifact: artifact,
			AbsPath:  absPath,
			Original: content,
		}

		var spans []span
		var edits []edit

		for _, r := range p.rulesFor(artifact) {
			value := resolveBinding(snap, r.Binding)
			if value == snapshot.Unknown {
				plan.Skipped = append(plan.Skipped, Mismatch{
					Artifact: artifact,
					Rule:     r.Name,
					Reason:   fmt.Sprintf("no known version for %s", r.Binding),
				})
				continue
			}
			if r.Transform != nil {
				value = r.Transform(value)
			}

			matches := r.Pattern.FindAllSubmatchIndex(content, -1)
			if len(matches) == 0 {
				plan.Mismatches = append(plan.Mismatches, Mismatch{
					Artifact: artifact,
					Rule:     r.Name,
					Reason:   "pattern matched zero occurrences",
				})
				continue
			}

			verIdx := r.Pattern.SubexpIndex("ver")
			dateIdx := r.Pattern.SubexpIndex("date")

			for _, m := range matches {
				spans = append(spans, span{start: m[0], end: m[1], rule: r.Name})

				verStart, verEnd := m[2*verIdx], m[2*verIdx+1]
				old := string(content[verStart:verEnd])
				if old == value {
					// Already current: leave the match untouched (idempotence)
					continue
				}

				edits = append(edits, edit{start: verStart, end: verEnd, text: value})
				fc.Replacements = append(fc.Replacements, Replacement{
					Rule: r.Name,
					Line: lineAt(content, verStart),
					Old:  old,
					New:  value,
				})

				// Refresh the date cell only when the version actually changes
				if dateIdx > 0 && m[2*dateIdx] >= 0 {
					edits = append(edits, edit{start: m[2*dateIdx], end: m[2*dateIdx+1], text: dateCell})
				}
			}
		}

		if err := checkOverlap(artifact, spans); err != nil {
			return nil, err
		}

		fc.Updated = applyEdits(content, edits)
		plan.Files = append(plan.Files, fc)
	}

	return plan, nil
}

// rulesFor returns the rules bound to one artifact, in table order.
func (p *Planner) rulesFor(artifact string) []Rule {
	var rules []Rule
	for _, r := range p.rules {
		if r.Artifact == artifact {
			rules = append(rules, r)
		}
	}
	return rules
}

// checkOverlap rejects rule sets where two rules claim overlapping text.
// Overlapping rules would make application order significant, which the
// rule table contract forbids.
func checkOverlap(artifact string, spans []span) error {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		if cur.start < prev.end && cur.rule != prev.rule {
			return fmt.Errorf("%w: %s and %s in %s", ErrOverlappingRules, prev.rule, cur.rule, artifact)
		}
	}
	return nil
}

// applyEdits produces new content with all edits applied.
// Edits are applied back-to-front so earlier offsets stay valid.
func applyEdits(content []byte, edits []edit) []byte {
	if len(edits) == 0 {
		out := make([]byte, len(content))
		copy(out, content)
		return out
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })

	out := make([]byte, len(content))
	copy(out, content)
	for _, e := range edits {
		out = append(out[:e.start], append([]byte(e.text), out[e.end:]...)...)
	}
	return out
}

// lineAt returns the 1-based line number of a byte offset.
func lineAt(content []byte, offset int) int {
	line := 1
	for _, b := range content[:offset] {
		if b == '\n' {
			line++
		}
	}
	return line
}
