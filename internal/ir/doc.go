// Package ir provides the value types shared by every journeysim package.
//
// Entities, evaluation contexts, event parameters and handler results are
// all represented as IRObject trees. The package also owns the single
// dotted-path resolver (Lookup) used by condition evaluation, context
// construction and trigger parameter mapping, plus canonical JSON and the
// domain-separated hashing used for content-addressed event IDs and seeds.
//
// This package imports nothing internal. All other internal packages
// import ir.
//
// Key design constraints:
//   - Numbers are IRInt or IRDecimal, never float64, so that canonical
//     serialization and hashing are stable across platforms
//   - All JSON tags use snake_case
//   - Object keys are always iterated through SortedKeys
package ir
