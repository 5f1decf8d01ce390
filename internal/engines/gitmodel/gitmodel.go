// Package gitmodel serves versioned model cards pulled from a git
// repository. A card is a YAML file mapping values of one input column
// to a prediction, with a default for everything else:
//
//	target: churn
//	type: categorical
//	default: "no"
//	lookup:
//	  column: plan
//	  values:
//	    basic: "no"
//	    premium: "yes"
//
// Create clones the repository, optionally pinned to a branch or tag,
// imports the card, and records where it came from. Predict is a table
// lookup. The card repository is never touched again after Create, so
// predictions stay pinned to the imported commit.
package gitmodel

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"gopkg.in/yaml.v3"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
)

const (
	cardKey       = "card.json"
	provenanceKey = "provenance.json"

	cardNumeric     = "numeric"
	cardCategorical = "categorical"
)

// Engine imports model cards from git repositories.
type Engine struct{}

// New returns the gitmodel engine.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) Metadata() engine.Metadata {
	return engine.Metadata{
		Name:         "gitmodel",
		Version:      "1.0.0",
		Description:  "Serves versioned model cards (value lookup tables) pulled from a git repository.",
		Capabilities: engine.BaseCapabilities | engine.CapDescribe | engine.CapConnect,
		Args: []engine.ArgSpec{
			{Key: "repo", Type: engine.ArgString, Required: true, Doc: "clone URL or local path of the card repository"},
			{Key: "ref", Type: engine.ArgString, Doc: "branch or tag to pin; defaults to the remote HEAD"},
			{Key: "path", Type: engine.ArgString, Doc: "card file inside the repository; defaults to <target>.yaml"},
			{Key: "depth", Type: engine.ArgInt, Default: 0, Doc: "shallow clone depth; 0 clones full history"},
		},
	}
}

// card is the YAML document stored in the repository. It round-trips
// through JSON as the model artifact, so numeric values may come back
// as float64 regardless of how the YAML spelled them.
type card struct {
	Target  string `yaml:"target" json:"target"`
	Type    string `yaml:"type" json:"type"`
	Default any    `yaml:"default" json:"default"`
	Lookup  struct {
		Column string         `yaml:"column" json:"column"`
		Values map[string]any `yaml:"values" json:"values"`
	} `yaml:"lookup" json:"lookup"`
}

func (c *card) validate(target string) error {
	if c.Target == "" {
		return fmt.Errorf("target is required")
	}
	if target != "" && c.Target != target {
		return fmt.Errorf("card is for target %q, model wants %q", c.Target, target)
	}
	if c.Type != cardNumeric && c.Type != cardCategorical {
		return fmt.Errorf("type must be %q or %q, got %q", cardNumeric, cardCategorical, c.Type)
	}
	if c.Lookup.Column == "" {
		return fmt.Errorf("lookup.column is required")
	}
	if len(c.Lookup.Values) == 0 {
		return fmt.Errorf("lookup.values must not be empty")
	}
	if c.Default == nil {
		return fmt.Errorf("default is required")
	}
	if c.Type == cardNumeric {
		if _, ok := dataset.ToFloat(c.Default); !ok {
			return fmt.Errorf("default %v is not numeric", c.Default)
		}
		for k, v := range c.Lookup.Values {
			if _, ok := dataset.ToFloat(v); !ok {
				return fmt.Errorf("value for %q is not numeric", k)
			}
		}
	}
	return nil
}

func (c *card) columnType() dataset.Type {
	if c.Type == cardNumeric {
		return dataset.TypeNumeric
	}
	return dataset.TypeCategorical
}

// provenance records where the card was imported from.
type provenance struct {
	Remote string `json:"remote"`
	Ref    string `json:"ref"`
	Commit string `json:"commit"`
	Path   string `json:"path"`
}

func (e *Engine) Create(ctx context.Context, m *engine.Model, req engine.CreateRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repoURL, err := repoFrom(req.Args)
	if err != nil {
		return engine.NewValidationError(m.Name, err)
	}
	cardPath := req.Args.StringOr("path", "")
	if cardPath == "" {
		if m.Target == "" {
			return engine.NewValidationError(m.Name, fmt.Errorf("either a target or an explicit path argument is required"))
		}
		cardPath = m.Target + ".yaml"
	}
	if !insideRepo(cardPath) {
		return engine.NewValidationError(m.Name, fmt.Errorf("path %q must stay inside the repository", cardPath))
	}
	if req.Data != nil {
		m.Log.Warn("ignoring training data for gitmodel model")
	}

	ref := req.Args.StringOr("ref", "")
	base, err := os.MkdirTemp("", "gitmodel-*")
	if err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	defer os.RemoveAll(base)

	repo, dir, err := clone(ctx, base, repoURL, ref, req.Args.IntOr("depth", 0))
	if err != nil {
		return engine.NewConnectionError(m.Engine, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(cardPath)))
	if err != nil {
		return engine.NewValidationError(m.Name, fmt.Errorf("card %q not found in %s: %w", cardPath, repoURL, err))
	}
	var c card
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return engine.NewValidationError(m.Name, fmt.Errorf("card %q is not valid YAML: %w", cardPath, err))
	}
	if err := c.validate(m.Target); err != nil {
		return engine.NewValidationError(m.Name, fmt.Errorf("card %q: %w", cardPath, err))
	}

	head, err := repo.Head()
	if err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	prov := provenance{
		Remote: repoURL,
		Ref:    ref,
		Commit: head.Hash().String(),
		Path:   cardPath,
	}
	if prov.Ref == "" {
		prov.Ref = head.Name().Short()
	}

	if err := engine.PutJSON(ctx, m.Store, cardKey, c); err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	if err := engine.PutJSON(ctx, m.Store, provenanceKey, prov); err != nil {
		return engine.NewTrainingError(m.Name, err)
	}
	m.Log.WithFields(map[string]any{
		"commit": prov.Commit,
		"path":   cardPath,
	}).Info("model card imported")
	return nil
}

func (e *Engine) Predict(ctx context.Context, m *engine.Model, req engine.PredictRequest) (*dataset.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Data == nil {
		return nil, engine.NewValidationError(m.Name, fmt.Errorf("prediction input is required"))
	}
	c, err := e.loadCard(ctx, m)
	if err != nil {
		return nil, err
	}
	if !req.Data.HasColumn(c.Lookup.Column) {
		return nil, engine.NewInferenceError(m.Name, fmt.Errorf("input is missing lookup column %q", c.Lookup.Column))
	}

	out := req.Data.Clone()
	numRows := out.NumRows()
	predictions := make([]any, numRows)
	for i := 0; i < numRows; i++ {
		raw, _ := out.Value(i, c.Lookup.Column)
		chosen, ok := c.Lookup.Values[dataset.FormatValue(raw)]
		if !ok {
			chosen = c.Default
		}
		if c.Type == cardNumeric {
			f, ok := dataset.ToFloat(chosen)
			if !ok {
				return nil, engine.NewInferenceError(m.Name, fmt.Errorf("card value %v is not numeric", chosen))
			}
			predictions[i] = f
		} else {
			predictions[i] = dataset.FormatValue(chosen)
		}
	}

	out, err = out.WithColumn(dataset.Column{Name: c.Target, Type: c.columnType()}, predictions)
	if err != nil {
		return nil, engine.NewInferenceError(m.Name, err)
	}
	return out, nil
}

func (e *Engine) Describe(ctx context.Context, m *engine.Model, attribute string) (*dataset.Frame, error) {
	c, err := e.loadCard(ctx, m)
	if err != nil {
		return nil, err
	}

	switch attribute {
	case "provenance":
		var prov provenance
		if err := engine.GetJSON(ctx, m.Store, provenanceKey, &prov); err != nil {
			return nil, engine.NewInferenceError(m.Name, fmt.Errorf("provenance unavailable: %w", err))
		}
		return kvFrame(m.Name, "property", [][2]string{
			{"remote", prov.Remote},
			{"ref", prov.Ref},
			{"commit", prov.Commit},
			{"path", prov.Path},
		})

	case "card":
		out, err := dataset.New(
			dataset.Column{Name: c.Lookup.Column, Type: dataset.TypeText},
			dataset.Column{Name: c.Target, Type: c.columnType()},
		)
		if err != nil {
			return nil, engine.NewInferenceError(m.Name, err)
		}
		keys := make([]string, 0, len(c.Lookup.Values))
		for k := range c.Lookup.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			value := c.Lookup.Values[k]
			if c.Type == cardNumeric {
				f, ok := dataset.ToFloat(value)
				if !ok {
					return nil, engine.NewInferenceError(m.Name, fmt.Errorf("card value %v is not numeric", value))
				}
				value = f
			} else {
				value = dataset.FormatValue(value)
			}
			if err := out.AppendRow(k, value); err != nil {
				return nil, engine.NewInferenceError(m.Name, err)
			}
		}
		return out, nil

	default:
		meta := e.Metadata()
		return kvFrame(m.Name, "attribute", [][2]string{
			{"engine", meta.Name},
			{"version", meta.Version},
			{"target", c.Target},
			{"target_type", c.Type},
			{"lookup_column", c.Lookup.Column},
			{"entries", dataset.FormatValue(float64(len(c.Lookup.Values)))},
			{"default", dataset.FormatValue(c.Default)},
		})
	}
}

// Connect lists the remote's references, the cheapest way to prove the
// repository is reachable without pulling objects. With a ref argument
// it also checks that the branch or tag exists.
func (e *Engine) Connect(ctx context.Context, args engine.Args) error {
	repoURL, err := repoFrom(args)
	if err != nil {
		return engine.NewValidationError("gitmodel", err)
	}

	rem := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})
	refs, err := rem.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return engine.NewConnectionError("gitmodel", fmt.Errorf("listing references of %s: %w", repoURL, err))
	}

	ref := args.StringOr("ref", "")
	if ref == "" {
		return nil
	}
	for _, r := range refs {
		if r.Name().Short() == ref {
			return nil
		}
	}
	return engine.NewConnectionError("gitmodel", fmt.Errorf("ref %q not found in %s", ref, repoURL))
}

// clone checks the repository out under base, single-branch when a ref
// is pinned. A ref is tried as a branch first, then as a tag. Each
// attempt gets its own directory so a failed branch clone cannot
// poison the tag retry.
func clone(ctx context.Context, base, url, ref string, depth int) (*git.Repository, string, error) {
	opts := &git.CloneOptions{URL: url}
	if depth > 0 {
		opts.Depth = depth
	}
	if ref == "" {
		dir := filepath.Join(base, "src")
		repo, err := git.PlainCloneContext(ctx, dir, false, opts)
		if err != nil {
			return nil, "", fmt.Errorf("cloning %s: %w", url, err)
		}
		return repo, dir, nil
	}

	opts.SingleBranch = true
	opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	dir := filepath.Join(base, "src")
	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err == nil {
		return repo, dir, nil
	}

	opts.ReferenceName = plumbing.NewTagReferenceName(ref)
	dir = filepath.Join(base, "src-tag")
	repo, tagErr := git.PlainCloneContext(ctx, dir, false, opts)
	if tagErr != nil {
		return nil, "", fmt.Errorf("cloning %s at %q: %w", url, ref, err)
	}
	return repo, dir, nil
}

func (e *Engine) loadCard(ctx context.Context, m *engine.Model) (*card, error) {
	var c card
	if err := engine.GetJSON(ctx, m.Store, cardKey, &c); err != nil {
		return nil, engine.NewInferenceError(m.Name, fmt.Errorf("model card unavailable: %w", err))
	}
	return &c, nil
}

func repoFrom(args engine.Args) (string, error) {
	repoURL, ok := args.String("repo")
	if !ok || strings.TrimSpace(repoURL) == "" {
		return "", fmt.Errorf("the repo argument is required")
	}
	return repoURL, nil
}

func insideRepo(p string) bool {
	if p == "" || filepath.IsAbs(p) {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

func kvFrame(model, keyName string, pairs [][2]string) (*dataset.Frame, error) {
	out, err := dataset.New(
		dataset.Column{Name: keyName, Type: dataset.TypeText},
		dataset.Column{Name: "value", Type: dataset.TypeText},
	)
	if err != nil {
		return nil, engine.NewInferenceError(model, err)
	}
	for _, pair := range pairs {
		if err := out.AppendRow(pair[0], pair[1]); err != nil {
			return nil, engine.NewInferenceError(model, err)
		}
	}
	return out, nil
}
