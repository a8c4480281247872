// Package batch drives certificate issuance for an ordered list of company
// identifiers.
//
// A Processor hands each identifier, one at a time and in input order, to an
// Issuer: first NavigateToCertificatePage, then EmitCertificate. A true
// outcome counts as a success and a false outcome as a failure. An error or
// a panic from either step is an item fault; it is logged, counted as a
// failure for that identifier only, and the batch moves on. Every identifier
// therefore settles exactly once and Success+Failure always equals the
// number of identifiers processed.
//
// The session, credential and registry are forwarded to the Issuer without
// being inspected. Cancelling the context stops the batch before the next
// identifier; the counts then cover only the identifiers already settled.
package batch
