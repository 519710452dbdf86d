// Package shared holds code used by several packages that belongs to none of
// them. Today that is only the testutil subpackage.
//
// # Test Utilities
//
// testutil provides:
//
//   - DLTINS document, zip archive and registry feed generators built from
//     deterministic instrument fixtures
//   - a buffered slog handler with assertions on captured records
//
// Production code must not import testutil.
package shared
