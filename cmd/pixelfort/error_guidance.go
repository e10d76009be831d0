package main

import (
	"context"
	"errors"
	"net"

	"pixelfort/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized":
			lines = append(lines, "hint: log in first with: pixelfort login, or set PIXELFORT_API_TOKEN.")
		case "forbidden":
			lines = append(lines, "hint: verify PIXELFORT_API_TOKEN and PIXELFORT_ADMIN_TOKEN configuration.")
		case "conflict":
			lines = append(lines, "hint: identical or conflicting content already exists; see the error detail.")
		case "resource_exhausted":
			lines = append(lines, "hint: retry shortly or reduce concurrent uploads.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify PIXELFORT_API_URL points to a pixelfort server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase PIXELFORT_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a pixelfort server is running at PIXELFORT_API_URL.",
			"hint: start local server manually with: pixelfort srv",
			"hint: you can increase PIXELFORT_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
