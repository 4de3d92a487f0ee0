// Package ir provides the literal value types shared by every semlayer layer.
//
// This package contains value definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - numerics are IRInt or IRDecimal so rendered
//     SQL is byte-identical across platforms
//   - Literals are typed values, never raw SQL text
//   - Fingerprints use RFC 8785 canonical JSON with NFC-normalized strings
package ir
