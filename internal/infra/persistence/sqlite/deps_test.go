// Package sqlite provides dependency boundary tests for infra persistence (in-memory + sqlite).
package sqlite

import (
	"go/build"
	"strings"
	"testing"
)

var allowedDomainImports = map[string]struct{}{
	"nestcore/pkg/domain":                        {},
	"nestcore/docs/schema/sql":                   {},
	"nestcore/internal/infra/persistence/memory": {},
}

func TestImportsAreDomainOrStdlib(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	for _, imp := range pkg.Imports {
		if !strings.HasPrefix(imp, "nestcore/") {
			continue
		}
		if _, ok := allowedDomainImports[imp]; ok {
			continue
		}
		t.Fatalf("unexpected dependency: %s", imp)
	}
}
