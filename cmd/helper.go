package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	units "github.com/docker/go-units"

	"github.com/cocoonstack/emuhost/title"
)

// resolveTitle returns a loadable path for ref and its program id.
func resolveTitle(ctx context.Context, ref string) (string, uint64, error) {
	path, err := title.NewResolver(conf.TitleCacheDir()).Resolve(ctx, ref)
	if err != nil {
		return "", 0, fmt.Errorf("resolve title %s: %w", ref, err)
	}
	id, err := title.ProgramID(path)
	if err != nil {
		return "", 0, err
	}
	return path, id, nil
}

// parseHexID parses a program or movie id given with or without 0x.
func parseHexID(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func formatSize(bytes int64) string {
	return units.HumanSize(float64(bytes))
}
