package data

import (
	"bufio"
	"github.com/pkg/errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Labels maps image file names to label vectors
type Labels map[string][]float32

// ReadLabels parses an attribute list. The first line is ignored, the second holds the attribute names
// and each following line has a file name and a flag per attribute. A flag of 1 gives a label of 1.0,
// any other value 0.0. Label vectors hold the attrs values in the given order.
func ReadLabels(r io.Reader, attrs []string) (Labels, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	var index []int
	var ncols int
	labels := make(Labels)
	for s.Scan() {
		line++
		fields := strings.Fields(s.Text())
		switch {
		case line == 1:
			continue
		case line == 2:
			pos := make(map[string]int, len(fields))
			for i, name := range fields {
				pos[name] = i
			}
			for _, name := range attrs {
				i, ok := pos[name]
				if !ok {
					return nil, errors.Errorf("attribute %q not found in label file header", name)
				}
				index = append(index, i)
			}
			ncols = len(fields)
			continue
		case len(fields) == 0:
			continue
		}
		if len(fields) != ncols+1 {
			return nil, errors.Errorf("line %d: expected %d flags, got %d", line, ncols, len(fields)-1)
		}
		label := make([]float32, len(index))
		for i, col := range index {
			flag, err := strconv.Atoi(fields[col+1])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid flag", line)
			}
			if flag == 1 {
				label[i] = 1
			}
		}
		labels[fields[0]] = label
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading labels")
	}
	if line < 2 {
		return nil, errors.New("label file is missing attribute header")
	}
	return labels, nil
}

// ReadLabelFile loads the attribute list from a file
func ReadLabelFile(path string, attrs []string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening label file")
	}
	defer f.Close()
	labels, err := ReadLabels(f, attrs)
	return labels, errors.Wrapf(err, "%s", path)
}

// Lookup returns the label for a file path, matched on the base name.
func (l Labels) Lookup(path string) ([]float32, error) {
	name := filepath.Base(path)
	label, ok := l[name]
	if !ok {
		return nil, &MissingLabelError{File: name}
	}
	return label, nil
}

// ListImages returns the regular files in dir in sorted order
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "error listing images")
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
