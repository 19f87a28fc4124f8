package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readList reads one entry per line, skipping blank lines and '#' comments.
func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list: %w", err)
	}
	defer f.Close()

	var entries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list %s: %w", path, err)
	}
	return entries, nil
}

// sampleIDs returns the samples named on the command line, or those listed
// in the configured samples file.
func sampleIDs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	path := viper.GetString(keySamples)
	if path == "" {
		return nil, usageErrorf("no samples given; pass sample ids or --samples <file>")
	}
	samples, err := readList(path)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("sample list %s is empty", path)
	}
	return samples, nil
}
