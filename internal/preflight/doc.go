// Package preflight provides readiness checks for the filesystem paths and
// external programs slowmovie depends on.
//
// These checks run in two contexts:
//   - "slowmovie run" calls RunAll before the first tick and refuses to start
//     when a required check fails.
//   - "slowmovie status" displays every result, including optional ones.
package preflight
