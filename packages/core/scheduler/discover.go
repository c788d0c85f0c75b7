package scheduler

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FeatureFiles expands configured paths into an ordered list of feature
// files. Directories are walked for *.feature files; a path of the form
// "@list.txt" names a text file listing feature paths, one per line, with
// blank lines and #-comments ignored.
func FeatureFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		switch {
		case strings.HasPrefix(path, "@"):
			listed, err := parseFeatureList(path[1:])
			if err != nil {
				return nil, err
			}
			files = append(files, listed...)
		default:
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("can't find path: %s", path)
			}
			if !info.IsDir() {
				files = append(files, path)
				continue
			}
			walked, err := walkFeatures(path)
			if err != nil {
				return nil, err
			}
			files = append(files, walked...)
		}
	}
	return files, nil
}

func walkFeatures(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".feature") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func parseFeatureList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feature list: %w", err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var files []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		files = append(files, filepath.Clean(filepath.Join(dir, line)))
	}
	return files, scanner.Err()
}
