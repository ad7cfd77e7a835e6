//go:build governance

package core_test

import (
	"go/types"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/leapstack-labs/workbench"

// TestGovernance_CoreCohesion reports exported core types used by fewer
// than two packages. A type with a single user belongs to that user.
func TestGovernance_CoreCohesion(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes |
			packages.NeedTypesInfo | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	if err != nil {
		t.Fatalf("failed to load packages: %v", err)
	}

	var corePkg *packages.Package
	for _, p := range pkgs {
		if p.PkgPath == modulePath+"/pkg/core" {
			corePkg = p
			break
		}
	}
	if corePkg == nil {
		t.Fatal("could not find pkg/core")
	}

	coreTypes := make(map[types.Object]string)
	scope := corePkg.Types.Scope()
	for _, name := range scope.Names() {
		if obj, ok := scope.Lookup(name).(*types.TypeName); ok && obj.Exported() {
			coreTypes[obj] = name
		}
	}

	users := make(map[string]map[string]bool, len(coreTypes))
	for _, name := range coreTypes {
		users[name] = make(map[string]bool)
	}
	for _, p := range pkgs {
		if p == corePkg || p.TypesInfo == nil {
			continue
		}
		for _, obj := range p.TypesInfo.Uses {
			if name, ok := coreTypes[obj]; ok {
				users[name][strings.TrimPrefix(p.PkgPath, modulePath+"/")] = true
			}
		}
	}

	for name, importers := range users {
		switch len(importers) {
		case 0:
			t.Logf("unused core type: %s", name)
		case 1:
			for user := range importers {
				t.Errorf("core.%s is only used by %s; move it there", name, user)
			}
		}
	}
}

// TestGovernance_AdaptersDoNotAliasCore keeps driver packages from
// re-exporting core types under their own names. pkg/adapter's Config
// alias is the single sanctioned re-export.
func TestGovernance_AdaptersDoNotAliasCore(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes}
	pkgs, err := packages.Load(cfg, modulePath+"/pkg/adapters/...")
	if err != nil {
		t.Fatalf("failed to load packages: %v", err)
	}

	for _, p := range pkgs {
		if len(p.Errors) > 0 {
			continue
		}
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			tn, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || !tn.Exported() || !tn.IsAlias() {
				continue
			}
			named, ok := tn.Type().(*types.Named)
			if ok && named.Obj().Pkg() != nil && named.Obj().Pkg().Path() == modulePath+"/pkg/core" {
				t.Errorf("%s re-exports core.%s as %s; use core.%s directly",
					strings.TrimPrefix(p.PkgPath, modulePath+"/"), named.Obj().Name(), name, named.Obj().Name())
			}
		}
	}
}
