// Package pathutil validates user supplied paths before pocforge reads or writes them.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extensions accepted for structured input files.
var inputExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// cleanAbs rejects traversal patterns and returns the cleaned absolute path.
func cleanAbs(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path contains directory traversal pattern: %s", path)
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	return absPath, nil
}

// ValidateInputPath checks that path names an existing JSON or YAML file.
func ValidateInputPath(path string) (string, error) {
	absPath, err := cleanAbs(path)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if !inputExtensions[ext] {
		return "", fmt.Errorf("input file must be .json, .yaml or .yml, got %q", ext)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("input path is a directory: %s", absPath)
	}
	return absPath, nil
}

// ValidateConfigPath validates a configuration file path.
// Config files are expected to be YAML files.
func ValidateConfigPath(path string) (string, error) {
	absPath, err := cleanAbs(path)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if ext != ".yaml" && ext != ".yml" {
		return "", fmt.Errorf("config file must have .yaml or .yml extension, got %s", ext)
	}

	return absPath, nil
}

// ValidateOutputDir validates a directory results will be written under.
// The directory itself may not exist yet.
func ValidateOutputDir(path string) (string, error) {
	absPath, err := cleanAbs(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
		return "", fmt.Errorf("output path exists and is not a directory: %s", absPath)
	}
	return absPath, nil
}

// JoinAndValidate safely joins path components and validates the result
// stays within baseDir.
func JoinAndValidate(baseDir string, elems ...string) (string, error) {
	for _, elem := range elems {
		if strings.Contains(elem, "..") {
			return "", fmt.Errorf("path element contains directory traversal: %s", elem)
		}
	}

	joined, err := filepath.Abs(filepath.Join(append([]string{baseDir}, elems...)...))
	if err != nil {
		return "", fmt.Errorf("getting absolute joined path: %w", err)
	}

	within, err := IsWithinDirectory(joined, baseDir)
	if err != nil {
		return "", err
	}
	if !within {
		return "", fmt.Errorf("joined path %s is not within base directory %s", joined, baseDir)
	}
	return joined, nil
}

// IsWithinDirectory checks if a path is within a specific directory.
func IsWithinDirectory(path, dir string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}

	if absPath == absDir {
		return true, nil
	}
	return strings.HasPrefix(absPath, absDir+string(filepath.Separator)), nil
}

// SafeFileName replaces characters that are awkward in file names.
func SafeFileName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	out := strings.Trim(sb.String(), ".")
	if out == "" {
		return "_"
	}
	return out
}
