package exec

import (
	"os"
	"sort"
	"strings"

	"github.com/bitfield/script"
	"github.com/pkg/errors"
)

// Environ builds the command environment: the process environment, then
// each dotenv file in order, then extra. Later sources win. Missing dotenv
// files are skipped.
func Environ(dotenvFiles []string, extra map[string]string) ([]string, error) {
	env := os.Environ()

	for _, path := range dotenvFiles {
		vars, err := LoadDotenv(path)
		if os.IsNotExist(errors.Cause(err)) {
			continue
		}
		if err != nil {
			return nil, err
		}
		env = MergeEnv(env, pairs(vars))
	}

	return MergeEnv(env, pairs(extra)), nil
}

func LoadDotenv(path string) (map[string]string, error) {
	lines, err := script.File(path).Slice()
	if err != nil {
		return nil, errors.Wrapf(err, "open dotenv %s", path)
	}

	result := make(map[string]string)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))
		result[key] = value
	}
	return result, nil
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if (first == '"' || first == '\'') && first == last {
		return value[1 : len(value)-1]
	}
	return value
}

// MergeEnv overlays override onto base and returns KEY=VALUE pairs sorted by
// key.
func MergeEnv(base, override []string) []string {
	envMap := make(map[string]string)
	for _, list := range [][]string{base, override} {
		for _, e := range list {
			if k, v, ok := strings.Cut(e, "="); ok {
				envMap[k] = v
			}
		}
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

func pairs(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	return out
}
