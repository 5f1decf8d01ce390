package main

import (
	"os"
	"path/filepath"
)

const dataDirName = ".modelroom"

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, dataDirName), nil
}

func defaultConfigPath() (string, error) {
	dir, err := defaultDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "config.yaml"), nil
}

func defaultRecordsPath() (string, error) {
	dir, err := defaultDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "models.json"), nil
}

func defaultSQLitePath() (string, error) {
	dir, err := defaultDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "models.db"), nil
}

func defaultMetricsPath() (string, error) {
	dir, err := defaultDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "metrics.json"), nil
}

func defaultArtifactsRoot() (string, error) {
	dir, err := defaultDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "artifacts"), nil
}

func defaultLogPath() (string, error) {
	dir, err := defaultDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "modelroom.log"), nil
}
