//go:build ignore

// Command gen reads store/migrations/NNNN_name.sql / NNNN_name.undo.sql
// pairs and writes store/migrations_gen.go. Run manually from the store
// directory with `go run gen/main.go` after adding a migration (it reads
// ./migrations and writes ./migrations_gen.go); its output is
// checked in, so the package never reads the filesystem at runtime.
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

func main() {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		panic(err)
	}

	type pair struct {
		version int
		name    string
		up      string
		down    string
	}
	byVersion := map[int]*pair{}

	for _, e := range entries {
		base := e.Name()
		if !strings.HasSuffix(base, ".sql") {
			continue
		}
		parts := strings.SplitN(base, "_", 2)
		if len(parts) != 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join("migrations", base))
		if err != nil {
			panic(err)
		}

		p := byVersion[version]
		if p == nil {
			p = &pair{version: version}
			byVersion[version] = p
		}
		if strings.HasSuffix(base, ".undo.sql") {
			p.down = string(content)
		} else {
			p.name = strings.TrimSuffix(parts[1], ".sql")
			p.up = string(content)
		}
	}

	var pairs []*pair
	for _, p := range byVersion {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].version < pairs[j].version })

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "// Code generated by store/gen/main.go; DO NOT EDIT.")
	fmt.Fprintln(&buf, "package store")
	fmt.Fprintln(&buf)
	fmt.Fprintln(&buf, "var migrations = []migration{")
	for _, p := range pairs {
		fmt.Fprintf(&buf, "\t{Version: %d, Name: %q, Up: %q, Down: %q},\n", p.version, p.name, p.up, p.down)
	}
	fmt.Fprintln(&buf, "}")

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile("migrations_gen.go", formatted, 0644); err != nil {
		panic(err)
	}
}
