package main

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/imports"
)

var ErrInterfaceNotFound = errors.New("interface not found")

// GenerateOptions controls stub generation
type GenerateOptions struct {
	// Dir holds the package that declares Interface
	Dir       string
	Interface string
	// Stub defaults to Interface + "Proxy"
	Stub string
	// Output is only used to name the file for import resolution
	Output string
}

type method struct {
	Name     string
	Params   []param
	Results  []string
	Variadic bool
}

type param struct {
	Name string
	Type string
}

// Generate writes a stub struct with one func field per interface method
// and forwarding methods, so the stub satisfies the interface once woven
func Generate(opts GenerateOptions) ([]byte, error) {
	if opts.Stub == "" {
		opts.Stub = opts.Interface + "Proxy"
	}

	fset := token.NewFileSet()
	file, iface, err := findInterface(fset, opts.Dir, opts.Interface)
	if err != nil {
		return nil, err
	}

	methods, err := collectMethods(fset, iface)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Interface, err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by doffy-proxygen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", file.Name.Name)

	if len(file.Imports) > 0 {
		buf.WriteString("import (\n")
		for _, imp := range file.Imports {
			if imp.Name != nil {
				fmt.Fprintf(&buf, "\t%s %s\n", imp.Name.Name, imp.Path.Value)
			} else {
				fmt.Fprintf(&buf, "\t%s\n", imp.Path.Value)
			}
		}
		buf.WriteString(")\n\n")
	}

	fmt.Fprintf(&buf, "// %s implements %s by forwarding to func fields filled by aop.Weaver.Struct\n", opts.Stub, opts.Interface)
	fmt.Fprintf(&buf, "type %s struct {\n", opts.Stub)
	for _, m := range methods {
		fmt.Fprintf(&buf, "\t%sFn func(%s) %s `aop:%q`\n", m.Name, m.paramList(), m.resultList(), m.Name)
	}
	buf.WriteString("}\n\n")

	fmt.Fprintf(&buf, "var _ %s = (*%s)(nil)\n", opts.Interface, opts.Stub)

	for _, m := range methods {
		fmt.Fprintf(&buf, "\nfunc (p *%s) %s(%s) %s {\n", opts.Stub, m.Name, m.paramList(), m.resultList())
		call := fmt.Sprintf("p.%sFn(%s)", m.Name, m.argList())
		if len(m.Results) > 0 {
			fmt.Fprintf(&buf, "\treturn %s\n", call)
		} else {
			fmt.Fprintf(&buf, "\t%s\n", call)
		}
		buf.WriteString("}\n")
	}

	name := opts.Output
	if name == "" {
		name = filepath.Join(opts.Dir, strings.ToLower(opts.Stub)+"_gen.go")
	}
	out, err := imports.Process(name, buf.Bytes(), &imports.Options{Comments: true, TabIndent: true, TabWidth: 8})
	if err != nil {
		return nil, fmt.Errorf("failed to format generated code: %w", err)
	}
	return out, nil
}

// findInterface parses the non-test Go files of dir until it meets name
func findInterface(fset *token.FileSet, dir, name string) (*ast.File, *ast.InterfaceType, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !isSource(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil, nil, fmt.Errorf("could not parse %s: %w", path, err)
		}
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				if ts.Name.Name != name {
					continue
				}
				iface, ok := ts.Type.(*ast.InterfaceType)
				if !ok {
					return nil, nil, fmt.Errorf("%s is not an interface", name)
				}
				if ts.TypeParams != nil {
					return nil, nil, fmt.Errorf("%s: generic interfaces are not supported", name)
				}
				return file, iface, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: %s in %s", ErrInterfaceNotFound, name, dir)
}

func collectMethods(fset *token.FileSet, iface *ast.InterfaceType) ([]method, error) {
	var methods []method
	for _, field := range iface.Methods.List {
		ft, ok := field.Type.(*ast.FuncType)
		if !ok || len(field.Names) == 0 {
			return nil, fmt.Errorf("embedded %s is not supported", expr(fset, field.Type))
		}

		m := method{Name: field.Names[0].Name}
		if ft.Params != nil {
			for _, p := range ft.Params.List {
				typ := expr(fset, p.Type)
				if _, ok := p.Type.(*ast.Ellipsis); ok {
					m.Variadic = true
				}
				if len(p.Names) == 0 {
					m.Params = append(m.Params, param{Name: fmt.Sprintf("p%d", len(m.Params)), Type: typ})
					continue
				}
				for _, n := range p.Names {
					pname := n.Name
					if pname == "_" || pname == "p" {
						pname = fmt.Sprintf("p%d", len(m.Params))
					}
					m.Params = append(m.Params, param{Name: pname, Type: typ})
				}
			}
		}
		if ft.Results != nil {
			for _, r := range ft.Results.List {
				n := len(r.Names)
				if n == 0 {
					n = 1
				}
				for i := 0; i < n; i++ {
					m.Results = append(m.Results, expr(fset, r.Type))
				}
			}
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func (m method) paramList() string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Name + " " + p.Type
	}
	return strings.Join(parts, ", ")
}

func (m method) argList() string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Name
	}
	if m.Variadic && len(parts) > 0 {
		parts[len(parts)-1] += "..."
	}
	return strings.Join(parts, ", ")
}

func (m method) resultList() string {
	switch len(m.Results) {
	case 0:
		return ""
	case 1:
		return m.Results[0]
	default:
		return "(" + strings.Join(m.Results, ", ") + ")"
	}
}

func expr(fset *token.FileSet, e ast.Expr) string {
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, e); err != nil {
		return fmt.Sprintf("<%T>", e)
	}
	return buf.String()
}

func isSource(name string) bool {
	return strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") && !strings.HasSuffix(name, "_gen.go")
}
