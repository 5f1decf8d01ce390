package gitmodel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelroom/modelroom/internal/dataset"
	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/storage"
)

const churnCard = `target: churn
type: categorical
default: "unknown"
lookup:
  column: plan
  values:
    basic: "no"
    premium: "yes"
`

const priceCard = `target: price
type: numeric
default: 100
lookup:
  column: region
  values:
    east: 120.5
    west: 80
`

func cardWithDefault(def string) string {
	return fmt.Sprintf(`target: churn
type: categorical
default: %q
lookup:
  column: plan
  values:
    basic: "no"
    premium: "yes"
`, def)
}

func initCardRepo(t *testing.T, files map[string]string) (string, *git.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFiles(t, repo, dir, files, "add cards")
	return dir, repo
}

func commitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string, msg string) plumbing.Hash {
	t.Helper()

	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err = wt.Add(name)
		require.NoError(t, err)
	}

	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Card Bot",
			Email: "cards@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
	return hash
}

func newTestModel(t *testing.T, name, target string) *engine.Model {
	t.Helper()
	provider, err := storage.NewFSProvider(t.TempDir())
	require.NoError(t, err)
	id := "test-" + name
	return &engine.Model{ID: id, Name: name, Target: target, Engine: "gitmodel", Store: provider.ForModel(id)}
}

func imported(t *testing.T, name, target string, args engine.Args) *engine.Model {
	t.Helper()
	m := newTestModel(t, name, target)
	require.NoError(t, New().Create(context.Background(), m, engine.CreateRequest{Target: target, Args: args}))
	return m
}

func planFrame(t *testing.T, plans ...any) *dataset.Frame {
	t.Helper()
	f, err := dataset.New(
		dataset.Column{Name: "plan", Type: dataset.TypeCategorical},
		dataset.Column{Name: "seats", Type: dataset.TypeNumeric},
	)
	require.NoError(t, err)
	for i, p := range plans {
		require.NoError(t, f.AppendRow(p, float64(i)))
	}
	return f
}

func regionFrame(t *testing.T, regions ...any) *dataset.Frame {
	t.Helper()
	f, err := dataset.New(dataset.Column{Name: "region", Type: dataset.TypeCategorical})
	require.NoError(t, err)
	for _, r := range regions {
		require.NoError(t, f.AppendRow(r))
	}
	return f
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	e := New()
	meta := e.Metadata()
	require.NoError(t, meta.Validate())
	assert.Equal(t, "gitmodel", meta.Name)
	assert.True(t, meta.Capabilities.Has(engine.CapDescribe))
	assert.True(t, meta.Capabilities.Has(engine.CapConnect))
	assert.False(t, meta.Capabilities.Has(engine.CapUpdate))

	_, isUpdater := any(e).(engine.Updater)
	assert.False(t, isUpdater)
	_, isDescriber := any(e).(engine.Describer)
	assert.True(t, isDescriber)
	_, isConnector := any(e).(engine.Connector)
	assert.True(t, isConnector)
}

func TestCreateImportsCard(t *testing.T) {
	t.Parallel()

	dir, repo := initCardRepo(t, map[string]string{"churn.yaml": churnCard})
	head, err := repo.Head()
	require.NoError(t, err)

	m := imported(t, "churn", "churn", engine.Args{"repo": dir})
	ctx := context.Background()

	var c card
	require.NoError(t, engine.GetJSON(ctx, m.Store, cardKey, &c))
	assert.Equal(t, "churn", c.Target)
	assert.Equal(t, cardCategorical, c.Type)
	assert.Equal(t, "unknown", c.Default)
	assert.Equal(t, "plan", c.Lookup.Column)
	assert.Equal(t, "yes", c.Lookup.Values["premium"])

	var prov provenance
	require.NoError(t, engine.GetJSON(ctx, m.Store, provenanceKey, &prov))
	assert.Equal(t, dir, prov.Remote)
	assert.Equal(t, "master", prov.Ref)
	assert.Equal(t, head.Hash().String(), prov.Commit)
	assert.Equal(t, "churn.yaml", prov.Path)
}

func TestCreateWithExplicitPath(t *testing.T) {
	t.Parallel()

	dir, _ := initCardRepo(t, map[string]string{"cards/enterprise.yaml": churnCard})
	m := imported(t, "churn", "churn", engine.Args{"repo": dir, "path": "cards/enterprise.yaml"})

	out, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: planFrame(t, "premium")})
	require.NoError(t, err)
	v, ok := out.Value(0, "churn")
	require.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestCreatePinsRef(t *testing.T) {
	t.Parallel()

	dir, repo := initCardRepo(t, map[string]string{"churn.yaml": cardWithDefault("unknown")})
	head, err := repo.Head()
	require.NoError(t, err)
	first := head.Hash()
	_, err = repo.CreateTag("v1", first, nil)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("experiment"),
		Create: true,
	}))
	commitFiles(t, repo, dir, map[string]string{"churn.yaml": cardWithDefault("maybe")}, "experiment card")
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("master"),
	}))
	commitFiles(t, repo, dir, map[string]string{"churn.yaml": cardWithDefault("always")}, "update default")

	ctx := context.Background()
	defaultFor := func(m *engine.Model) string {
		t.Helper()
		var c card
		require.NoError(t, engine.GetJSON(ctx, m.Store, cardKey, &c))
		return dataset.FormatValue(c.Default)
	}

	t.Run("head of default branch", func(t *testing.T) {
		m := imported(t, "head", "churn", engine.Args{"repo": dir})
		assert.Equal(t, "always", defaultFor(m))
	})

	t.Run("pinned to tag", func(t *testing.T) {
		m := imported(t, "tagged", "churn", engine.Args{"repo": dir, "ref": "v1"})
		assert.Equal(t, "unknown", defaultFor(m))

		var prov provenance
		require.NoError(t, engine.GetJSON(ctx, m.Store, provenanceKey, &prov))
		assert.Equal(t, "v1", prov.Ref)
		assert.Equal(t, first.String(), prov.Commit)
	})

	t.Run("pinned to branch", func(t *testing.T) {
		m := imported(t, "branched", "churn", engine.Args{"repo": dir, "ref": "experiment"})
		assert.Equal(t, "maybe", defaultFor(m))
	})
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	dir, _ := initCardRepo(t, map[string]string{
		"churn.yaml":    churnCard,
		"broken.yaml":   "target: [unclosed",
		"mismatch.yaml": "target: other\ntype: categorical\ndefault: x\nlookup:\n  column: plan\n  values:\n    a: b\n",
		"badtype.yaml":  "target: churn\ntype: gaussian\ndefault: x\nlookup:\n  column: plan\n  values:\n    a: b\n",
		"badvalue.yaml": "target: price\ntype: numeric\ndefault: 10\nlookup:\n  column: region\n  values:\n    west: cheap\n",
	})

	cases := []struct {
		name   string
		target string
		args   engine.Args
		want   string
	}{
		{"missing repo", "churn", engine.Args{}, "repo argument is required"},
		{"escaping path", "churn", engine.Args{"repo": dir, "path": "../outside.yaml"}, "inside the repository"},
		{"card not found", "churn", engine.Args{"repo": dir, "path": "missing.yaml"}, "not found"},
		{"malformed yaml", "churn", engine.Args{"repo": dir, "path": "broken.yaml"}, "not valid YAML"},
		{"target mismatch", "churn", engine.Args{"repo": dir, "path": "mismatch.yaml"}, "card is for target"},
		{"bad card type", "churn", engine.Args{"repo": dir, "path": "badtype.yaml"}, "type must be"},
		{"non-numeric value", "price", engine.Args{"repo": dir, "path": "badvalue.yaml"}, "is not numeric"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := newTestModel(t, "bad-"+tc.name, tc.target)
			err := New().Create(context.Background(), m, engine.CreateRequest{Target: tc.target, Args: tc.args})
			var verr *engine.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestCreateConnectionFailures(t *testing.T) {
	t.Parallel()

	t.Run("repository unreachable", func(t *testing.T) {
		t.Parallel()

		m := newTestModel(t, "void", "churn")
		err := New().Create(context.Background(), m, engine.CreateRequest{
			Target: "churn",
			Args:   engine.Args{"repo": filepath.Join(t.TempDir(), "void")},
		})
		var cerr *engine.ConnectionError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "gitmodel", cerr.Engine)
	})

	t.Run("unknown ref", func(t *testing.T) {
		t.Parallel()

		dir, _ := initCardRepo(t, map[string]string{"churn.yaml": churnCard})
		m := newTestModel(t, "noref", "churn")
		err := New().Create(context.Background(), m, engine.CreateRequest{
			Target: "churn",
			Args:   engine.Args{"repo": dir, "ref": "nope"},
		})
		var cerr *engine.ConnectionError
		require.ErrorAs(t, err, &cerr)
	})
}

func TestPredictLooksUp(t *testing.T) {
	t.Parallel()

	dir, _ := initCardRepo(t, map[string]string{"churn.yaml": churnCard})
	m := imported(t, "churn", "churn", engine.Args{"repo": dir})

	in := planFrame(t, "basic", "premium", "enterprise", nil)
	out, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: in})
	require.NoError(t, err)
	require.Equal(t, 4, out.NumRows())

	for i, want := range []string{"no", "yes", "unknown", "unknown"} {
		v, ok := out.Value(i, "churn")
		require.True(t, ok)
		assert.Equal(t, want, v, "row %d", i)
	}
	assert.True(t, out.HasColumn("seats"), "input columns carry over")
	assert.False(t, in.HasColumn("churn"), "input is not mutated")
}

func TestPredictNumericCard(t *testing.T) {
	t.Parallel()

	dir, _ := initCardRepo(t, map[string]string{"price.yaml": priceCard})
	m := imported(t, "prices", "price", engine.Args{"repo": dir})

	out, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: regionFrame(t, "east", "south")})
	require.NoError(t, err)

	ct, ok := out.ColumnType("price")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeNumeric, ct)

	east, err := out.Float(0, "price")
	require.NoError(t, err)
	assert.InDelta(t, 120.5, east, 1e-9)
	south, err := out.Float(1, "price")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, south, 1e-9, "unlisted regions fall back to the default")
}

func TestPredictMissingLookupColumn(t *testing.T) {
	t.Parallel()

	dir, _ := initCardRepo(t, map[string]string{"churn.yaml": churnCard})
	m := imported(t, "churn", "churn", engine.Args{"repo": dir})

	_, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: regionFrame(t, "east")})
	var ierr *engine.InferenceError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorContains(t, err, "lookup column")
}

func TestPredictWithoutImportedCard(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, "empty", "churn")
	_, err := New().Predict(context.Background(), m, engine.PredictRequest{Data: planFrame(t, "basic")})
	var ierr *engine.InferenceError
	require.ErrorAs(t, err, &ierr)
	assert.ErrorIs(t, err, engine.ErrArtifactNotFound)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	dir, repo := initCardRepo(t, map[string]string{"churn.yaml": churnCard})
	head, err := repo.Head()
	require.NoError(t, err)
	m := imported(t, "churn", "churn", engine.Args{"repo": dir})
	e := New()
	ctx := context.Background()

	t.Run("info is the default", func(t *testing.T) {
		out, err := e.Describe(ctx, m, "")
		require.NoError(t, err)
		require.Equal(t, 7, out.NumRows())
		v, _ := out.Value(0, "value")
		assert.Equal(t, "gitmodel", v)
		v, _ = out.Value(2, "value")
		assert.Equal(t, "churn", v)
		v, _ = out.Value(5, "value")
		assert.Equal(t, "2", v)
		v, _ = out.Value(6, "value")
		assert.Equal(t, "unknown", v)
	})

	t.Run("provenance", func(t *testing.T) {
		out, err := e.Describe(ctx, m, "provenance")
		require.NoError(t, err)
		require.Equal(t, 4, out.NumRows())
		v, _ := out.Value(0, "value")
		assert.Equal(t, dir, v)
		v, _ = out.Value(2, "value")
		assert.Equal(t, head.Hash().String(), v)
	})

	t.Run("card", func(t *testing.T) {
		out, err := e.Describe(ctx, m, "card")
		require.NoError(t, err)
		require.Equal(t, 2, out.NumRows())
		k, _ := out.Value(0, "plan")
		assert.Equal(t, "basic", k)
		v, _ := out.Value(0, "churn")
		assert.Equal(t, "no", v)
		k, _ = out.Value(1, "plan")
		assert.Equal(t, "premium", k)
	})

	t.Run("read only", func(t *testing.T) {
		before, err := m.Store.List(ctx, "")
		require.NoError(t, err)
		_, err = e.Describe(ctx, m, "card")
		require.NoError(t, err)
		after, err := m.Store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestConnect(t *testing.T) {
	t.Parallel()

	dir, repo := initCardRepo(t, map[string]string{"churn.yaml": churnCard})
	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag("v1", head.Hash(), nil)
	require.NoError(t, err)
	e := New()
	ctx := context.Background()

	t.Run("reachable", func(t *testing.T) {
		require.NoError(t, e.Connect(ctx, engine.Args{"repo": dir}))
	})

	t.Run("branch ref exists", func(t *testing.T) {
		require.NoError(t, e.Connect(ctx, engine.Args{"repo": dir, "ref": "master"}))
	})

	t.Run("tag ref exists", func(t *testing.T) {
		require.NoError(t, e.Connect(ctx, engine.Args{"repo": dir, "ref": "v1"}))
	})

	t.Run("unknown ref", func(t *testing.T) {
		err := e.Connect(ctx, engine.Args{"repo": dir, "ref": "nope"})
		var cerr *engine.ConnectionError
		require.ErrorAs(t, err, &cerr)
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("unreachable", func(t *testing.T) {
		err := e.Connect(ctx, engine.Args{"repo": filepath.Join(t.TempDir(), "void")})
		var cerr *engine.ConnectionError
		require.ErrorAs(t, err, &cerr)
	})

	t.Run("missing repo", func(t *testing.T) {
		err := e.Connect(ctx, engine.Args{})
		var verr *engine.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}
