// Package core defines the shared language of the Workbench system.
//
// This package contains:
//   - Connection profiles and database types
//   - Catalog objects (schemas, tables, columns, indexes, ...)
//   - Query results and execution options
//   - Dialect descriptions used for quoting and statement splitting
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
