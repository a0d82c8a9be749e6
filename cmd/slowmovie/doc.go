// Package main hosts the slowmovie CLI entrypoint and command graph.
//
// "slowmovie run" is the long-lived player. The remaining commands are
// operator tooling: status and state inspection, probing and sampling
// videos, and configuration scaffolding. Heavy lifting lives in the internal
// packages; commands here only resolve configuration and render output.
package main
