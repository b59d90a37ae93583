package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// InterfaceInfo is one interface found by Scan
type InterfaceInfo struct {
	File    string
	Line    int
	Package string
	Name    string
	Methods []MethodInfo
}

// MethodInfo is one interface method with the shape the weaver will
// probably assign to it
type MethodInfo struct {
	Name  string
	Shape string
}

// Scan walks rootDir and reports every non-generic interface declaration
func Scan(rootDir string) ([]InterfaceInfo, error) {
	var found []InterfaceInfo

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			switch info.Name() {
			case "vendor", ".git", "_examples", "testdata":
				return filepath.SkipDir
			}
			return nil
		}
		if !isSource(info.Name()) {
			return nil
		}

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not parse %s: %v\n", path, err)
			return nil
		}

		ast.Inspect(file, func(n ast.Node) bool {
			ts, ok := n.(*ast.TypeSpec)
			if !ok || ts.TypeParams != nil {
				return true
			}
			iface, ok := ts.Type.(*ast.InterfaceType)
			if !ok || iface.Methods == nil || len(iface.Methods.List) == 0 {
				return true
			}

			item := InterfaceInfo{
				File:    path,
				Line:    fset.Position(ts.Pos()).Line,
				Package: file.Name.Name,
				Name:    ts.Name.Name,
			}
			for _, field := range iface.Methods.List {
				ft, ok := field.Type.(*ast.FuncType)
				if !ok || len(field.Names) == 0 {
					continue
				}
				item.Methods = append(item.Methods, MethodInfo{
					Name:  field.Names[0].Name,
					Shape: shapeHint(fset, ft),
				})
			}
			found = append(found, item)
			return true
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].File != found[j].File {
			return found[i].File < found[j].File
		}
		return found[i].Line < found[j].Line
	})
	return found, nil
}

// shapeHint classifies a result list from syntax alone. The weaver decides
// from real types; this is only a preview.
func shapeHint(fset *token.FileSet, ft *ast.FuncType) string {
	var results []string
	if ft.Results != nil {
		for _, r := range ft.Results.List {
			n := len(r.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				results = append(results, expr(fset, r.Type))
			}
		}
	}
	if n := len(results); n > 0 && results[n-1] == "error" {
		results = results[:n-1]
	}

	switch {
	case len(results) == 0:
		return "Void"
	case len(results) > 1:
		return "unsupported"
	}

	r := results[0]
	switch {
	case r == "*async.Task":
		return "AsyncVoid(standard)"
	case r == "<-chan error":
		return "AsyncVoid(lightweight)"
	case strings.HasPrefix(r, "*async.Future["):
		return "AsyncResult(" + strings.TrimSuffix(strings.TrimPrefix(r, "*async.Future["), "]") + ")"
	case strings.Contains(r, "[") && !strings.HasPrefix(r, "[") && !strings.HasPrefix(r, "map["):
		return "GenericValue(" + r + ")"
	default:
		return "Value"
	}
}
