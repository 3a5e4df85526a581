//go:build mage

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// trees are the source roots Stats reports on, in print order.
var trees = []string{"pkg", "internal", "cmd"}

// Stats prints Go lines of code per tree and documentation word counts.
func Stats() error {
	prod := map[string]int{}
	test := map[string]int{}

	for _, tree := range trees {
		err := filepath.WalkDir(tree, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			count, err := countLines(path)
			if err != nil {
				return nil
			}
			if strings.HasSuffix(path, "_test.go") {
				test[tree] += count
			} else {
				prod[tree] += count
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	docWords, err := countDocWords()
	if err != nil {
		return err
	}

	var prodTotal, testTotal int
	for _, tree := range trees {
		fmt.Printf("%-9s production: %6d  tests: %6d\n", tree, prod[tree], test[tree])
		prodTotal += prod[tree]
		testTotal += test[tree]
	}
	fmt.Printf("%-9s production: %6d  tests: %6d\n", "total", prodTotal, testTotal)
	fmt.Printf("Words (documentation): %d\n", docWords)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}

// countDocWords counts words in the top-level markdown files.
func countDocWords() (int, error) {
	matches, err := filepath.Glob("*.md")
	if err != nil {
		return 0, err
	}
	total := 0
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		total += countWords(string(data))
	}
	return total, nil
}

func countWords(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}
