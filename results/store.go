package results

import "github.com/ethereum-optimism/infra/op-reporter/types"

// AppPackageResolver maps a run id to the app package name under test
type AppPackageResolver func(runID string) string

// DefaultAppPackageResolver uses the name part of an "<abi> <name>" run id
func DefaultAppPackageResolver(runID string) string {
	_, name := types.ParseRunID(runID)
	return name
}

// Store maps run ids to package results, creating them on first reference.
// It is the sole owner of the package results it hands out.
type Store struct {
	resolve  AppPackageResolver
	order    []string
	packages map[string]*PackageResult
}

// NewStore creates an empty store. A nil resolver uses DefaultAppPackageResolver.
func NewStore(resolve AppPackageResolver) *Store {
	if resolve == nil {
		resolve = DefaultAppPackageResolver
	}
	return &Store{
		resolve:  resolve,
		packages: make(map[string]*PackageResult),
	}
}

// GetOrCreatePackage returns the package result for id, creating it if needed.
// Repeated calls with the same id return the same instance.
func (s *Store) GetOrCreatePackage(id string) *PackageResult {
	pkg, exists := s.packages[id]
	if !exists {
		pkg = NewPackageResult(id, s.resolve(id))
		s.packages[id] = pkg
		s.order = append(s.order, id)
	}
	return pkg
}

// Package returns the package result for id if it exists
func (s *Store) Package(id string) (*PackageResult, bool) {
	pkg, ok := s.packages[id]
	return pkg, ok
}

// Packages returns all package results in creation order
func (s *Store) Packages() []*PackageResult {
	out := make([]*PackageResult, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.packages[id])
	}
	return out
}

// Len returns the number of packages in the store
func (s *Store) Len() int {
	return len(s.packages)
}
