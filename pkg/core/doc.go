// Package core defines the shared language of the housetax pipeline.
//
// This package contains:
//   - Tidy record types (CountryCode, HousePriceRecord, PropertyTaxRecord, CombinedRecord)
//   - Chart-time derived data (DerivedSeries)
//   - The pipeline error taxonomy (SourceFormatError, JoinIntegrityError, RenderingConstraintError)
//   - Service interfaces for the SQL inspection engines (Adapter)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
