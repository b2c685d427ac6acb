package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//InSlice returns true if given string appears in given slice
func InSlice(lookingFor string, slice []string) bool {
	for _, s := range slice {
		if s == lookingFor {
			return true
		}
	}

	return false
}

//ListDir returns a list of files/ directories in given path
func ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("ListDir: Error, got '%v'", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names, nil
}

//ListSubDirs returns the names of the directories directly under given path
func ListSubDirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("ListSubDirs: Error, got '%v'", err)
	}

	names := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}

	return names, nil
}

//IsMediaFile returns true if given file name has one of MediaExtensions (case insensitive)
func IsMediaFile(name string) bool {
	return InSlice(strings.ToLower(filepath.Ext(name)), MediaExtensions)
}

//FileExists returns true if given path exists and is a regular file
func FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
