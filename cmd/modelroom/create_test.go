package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modelroom/modelroom/internal/engine"
	"github.com/modelroom/modelroom/internal/registry"
)

func TestCreateCommand_TrainsModelWithWait(t *testing.T) {
	home := setupCreateHome(t)
	csvPath := writeCreateCSV(t, home, "houses.csv", housePrices)

	stdout, err := executeCreateCommand("houses", "--engine", "baseline", "--target", "price", "--data", csvPath, "--wait")
	require.NoError(t, err)
	require.Contains(t, stdout, "✓ Model 'houses' trained")
	require.Contains(t, stdout, "baseline")

	rec := loadCreateRecord(t, home, "houses")
	require.Equal(t, registry.StatusComplete, rec.Status)
	require.Equal(t, "price", rec.Target)
	require.Equal(t, 4, rec.DataRows)
}

func TestCreateCommand_DrainsTrainingWithoutWait(t *testing.T) {
	home := setupCreateHome(t)
	csvPath := writeCreateCSV(t, home, "houses.csv", housePrices)

	stdout, err := executeCreateCommand("houses", "--engine", "baseline", "--target", "price", "--data", csvPath)
	require.NoError(t, err)
	require.Contains(t, stdout, "✓ Model 'houses' scheduled")
	require.Contains(t, stdout, "generating")

	// The host drains outstanding jobs on shutdown, so by the time the
	// command returns the record on disk has already left "generating".
	rec := loadCreateRecord(t, home, "houses")
	require.Equal(t, registry.StatusComplete, rec.Status)
}

func TestCreateCommand_DuplicateName(t *testing.T) {
	home := setupCreateHome(t)
	csvPath := writeCreateCSV(t, home, "houses.csv", housePrices)

	_, err := executeCreateCommand("houses", "--engine", "baseline", "--target", "price", "--data", csvPath, "--wait")
	require.NoError(t, err)

	_, err = executeCreateCommand("houses", "--engine", "baseline", "--target", "price", "--data", csvPath, "--wait")
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestCreateCommand_UnknownEngine(t *testing.T) {
	setupCreateHome(t)

	_, err := executeCreateCommand("houses", "--engine", "quantum", "--target", "price")
	require.Error(t, err)
	require.Contains(t, err.Error(), "quantum")
}

func TestCreateCommand_MissingTargetColumn(t *testing.T) {
	home := setupCreateHome(t)
	csvPath := writeCreateCSV(t, home, "houses.csv", housePrices)

	_, err := executeCreateCommand("houses", "--engine", "baseline", "--target", "label", "--data", csvPath, "--wait")
	require.Error(t, err)
	require.Contains(t, err.Error(), "label")
}

func TestCreateCommand_WaitSurfacesTrainingFailure(t *testing.T) {
	home := setupCreateHome(t)
	csvPath := writeCreateCSV(t, home, "empty.csv", "sqft,price\n900,\n1100,\n")

	_, err := executeCreateCommand("houses", "--engine", "baseline", "--target", "price", "--data", csvPath, "--wait")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no rows carry a value")

	rec := loadCreateRecord(t, home, "houses")
	require.Equal(t, registry.StatusError, rec.Status)
	require.NotEmpty(t, rec.Error)
}

func TestCreateCommand_EngineArgs(t *testing.T) {
	home := setupCreateHome(t)
	csvPath := writeCreateCSV(t, home, "houses.csv", housePrices)

	_, err := executeCreateCommand("houses", "--engine", "baseline", "--target", "price", "--data", csvPath, "--arg", "band=2.0", "--wait")
	require.NoError(t, err)

	rec := loadCreateRecord(t, home, "houses")
	require.Equal(t, 2.0, rec.Args["band"])
}

func TestParseArgPairs(t *testing.T) {
	args, err := parseArgPairs([]string{"alpha=0.5", "optimizer=adam", "shuffle=true", "label=42nd"})
	require.NoError(t, err)
	require.Equal(t, engine.Args{
		"alpha":     0.5,
		"optimizer": "adam",
		"shuffle":   true,
		"label":     "42nd",
	}, args)
}

func TestParseArgPairs_Empty(t *testing.T) {
	args, err := parseArgPairs(nil)
	require.NoError(t, err)
	require.Nil(t, args)
}

func TestParseArgPairs_Invalid(t *testing.T) {
	_, err := parseArgPairs([]string{"broken"})
	require.Error(t, err)

	_, err = parseArgPairs([]string{"=value"})
	require.Error(t, err)
}

const housePrices = "sqft,price\n820,150000\n945,172000\n1100,205000\n1320,240000\n"

func executeCreateCommand(extraArgs ...string) (string, error) {
	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)

	args := append([]string{"create"}, extraArgs...)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func setupCreateHome(t *testing.T) string {
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeCreateCSV(t *testing.T, home, name, content string) string {
	t.Helper()
	path := filepath.Join(home, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadCreateRecord(t *testing.T, home, name string) registry.Record {
	t.Helper()
	store, err := registry.NewFileStore(filepath.Join(home, ".modelroom", "models.json"))
	require.NoError(t, err)
	defer store.Close()

	rec, err := store.GetByName(name)
	require.NoError(t, err)
	return rec
}
