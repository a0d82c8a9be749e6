// Package deps checks that the external programs slowmovie shells out to are
// installed.
package deps
