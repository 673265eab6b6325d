// Package core holds infrastructure shared by the registration service's
// business packages.
//
// # Error Handling
//
// Technical errors are mapped to Portuguese messages for the site's users
// with [MapError]. Each category has a code that operators can quote when
// asking for help:
//
//   - REG001-REG005: registration errors (sold out, unknown course, duplicates)
//   - EXP001-EXP003: export pre-validation failures
//   - FILE001-FILE013: uploaded file problems
//   - VAL001-VAL002: request validation
//   - DB001-DB006: database connectivity
//   - UPL001-UPL005: processing slots, cancellation and timeouts
//
// # Processing Limiter
//
// Spreadsheet processing is CPU and memory heavy. [Limiter] bounds how many
// files are processed at once and lets shutdown wait for in-flight work.
//
// # Request Metadata
//
// Client IP, user agent and the acting administrator travel through
// context.Context so services can log them without depending on net/http.
package core
