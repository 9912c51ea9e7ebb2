package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// HouseFile loads procedural houses from either a JSON array or a JSONL file
// with one house per line.
type HouseFile struct{}

func (d *HouseFile) Name() string { return "houses" }
func (d *HouseFile) Load(path string) ([]House, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read houses file %v: %w", path, err)
	}
	trimmed := bytes.TrimSpace(data)
	var houses []House
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &houses); err != nil {
			return nil, fmt.Errorf("failed to parse houses file %v: %w", path, err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			var house House
			if err := json.Unmarshal(text, &house); err != nil {
				return nil, fmt.Errorf("failed to parse house at %v:%v: %w", path, line, err)
			}
			houses = append(houses, house)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan houses file %v: %w", path, err)
		}
	}
	for i, house := range houses {
		if house.ID() == "" {
			return nil, fmt.Errorf("house #%v in %v has no string id", i, path)
		}
	}
	return houses, nil
}
