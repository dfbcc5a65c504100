package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes that decodes from "200mb", "512k" or a plain number.
type ByteSize int64

// ParseBytes parses a human readable size. Units k, m and g are powers of 1024
// and an optional trailing "b" is ignored.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, errors.New("empty size")
	}
	mult := int64(1)
	last := s[len(s)-1]
	if last == 'b' {
		s = strings.TrimSpace(s[:len(s)-1])
		if s == "" {
			return 0, errors.New("invalid size")
		}
		last = s[len(s)-1]
	}
	switch last {
	case 'k':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if v < 0 {
		return 0, errors.New("negative size")
	}
	return int64(v * float64(mult)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used for env overrides.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := ParseBytes(string(text))
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// UnmarshalYAML accepts both integers and size strings.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	return b.UnmarshalText([]byte(node.Value))
}

// String formats the size with the largest exact unit.
func (b ByteSize) String() string {
	n := int64(b)
	switch {
	case n != 0 && n%(1<<30) == 0:
		return fmt.Sprintf("%dgb", n>>30)
	case n != 0 && n%(1<<20) == 0:
		return fmt.Sprintf("%dmb", n>>20)
	case n != 0 && n%(1<<10) == 0:
		return fmt.Sprintf("%dkb", n>>10)
	default:
		return strconv.FormatInt(n, 10)
	}
}
