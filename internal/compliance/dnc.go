package compliance

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DNCSet is a set of phone numbers that must never be dialed. Entries are
// stored as-is; callers normalize before membership checks.
type DNCSet map[string]struct{}

func (s DNCSet) Contains(number string) bool {
	_, ok := s[number]
	return ok
}

// LoadDNCFile reads a newline-delimited do-not-call list. Blank lines are
// ignored. A missing file is an empty list, not an error.
func LoadDNCFile(path string) (DNCSet, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return DNCSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("compliance: open dnc list %s: %w", path, err)
	}
	defer f.Close()

	set := DNCSet{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		set[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("compliance: read dnc list %s: %w", path, err)
	}
	return set, nil
}

// LoadDNCRedis reads the do-not-call list from a Redis set, letting several
// dialer instances share one list.
func LoadDNCRedis(ctx context.Context, rdb *redis.Client, key string) (DNCSet, error) {
	members, err := rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("compliance: load dnc set %s: %w", key, err)
	}
	set := make(DNCSet, len(members))
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		set[m] = struct{}{}
	}
	return set, nil
}

// Merge returns the union of both sets.
func Merge(a, b DNCSet) DNCSet {
	out := make(DNCSet, len(a)+len(b))
	for n := range a {
		out[n] = struct{}{}
	}
	for n := range b {
		out[n] = struct{}{}
	}
	return out
}
