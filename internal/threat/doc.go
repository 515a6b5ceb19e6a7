// Package threat turns extracted indicators into a threat assessment.
//
// The assessment has three parts:
//
//   - a numeric score from 0 to 100 built from fixed additive weights
//   - a risk level derived only from that score
//   - a single best-fit category with a confidence and the evidence that
//     selected it
//
// Classification is rule based. The category table is an ordered slice so
// that ties between equally weighted categories always resolve to the
// category declared first.
package threat
