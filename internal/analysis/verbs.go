package analysis

import (
	"bufio"
	"os"
	"strings"
)

// defaultSpeechVerbs is used when the configured word list cannot be read,
// so explicit attribution still functions (degraded) rather than failing
// the whole stage.
var defaultSpeechVerbs = []string{
	"said", "asked", "replied", "whispered", "shouted", "murmured", "cried",
}

// LoadSpeechVerbs reads a newline-delimited speech-verb list from path.
// Lines starting with '#' are comments; blank lines are ignored. If the
// file cannot be read, it returns defaultSpeechVerbs together with the
// error.
func LoadSpeechVerbs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return defaultSpeechVerbs, err
	}
	defer f.Close()

	var verbs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		verbs = append(verbs, line)
	}
	if err := scanner.Err(); err != nil {
		return defaultSpeechVerbs, err
	}
	return verbs, nil
}
