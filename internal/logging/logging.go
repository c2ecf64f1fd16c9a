// Package logging wires golog child loggers for the touchpoint packages.
//
// golog children copy their parent's level when they are created, so a
// level set on the default logger after a package-level child exists would
// not reach it. Child keeps track of every logger it hands out and SetLevel
// updates all of them.
package logging

import (
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/kataras/golog"
)

// Levels lists the level names SetLevel accepts, quietest first.
var Levels = []string{"disable", "fatal", "error", "warn", "info", "debug"}

var (
	mu       sync.Mutex
	children []*golog.Logger
	level    = "info"
)

// Child returns a logger that prefixes every line with prefix, e.g.
// "[input]".
func Child(prefix string) *golog.Logger {
	mu.Lock()
	defer mu.Unlock()

	l := golog.Child(prefix)
	l.SetLevel(level)
	children = append(children, l)
	return l
}

// SetLevel changes the level of the default logger and every child.
// Accepted names are golog's: "debug", "info", "warn", "error", "fatal",
// "disable".
func SetLevel(name string) {
	mu.Lock()
	defer mu.Unlock()

	level = name
	golog.SetLevel(name)
	for _, l := range children {
		l.SetLevel(name)
	}
}

// Level returns the level most recently set with SetLevel.
func Level() string {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// SetOutput redirects the default logger and every child to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	golog.SetOutput(w)
	for _, l := range children {
		l.SetOutput(w)
	}
}

// ValidLevel reports whether name is one of Levels, ignoring case.
func ValidLevel(name string) bool {
	return slices.Contains(Levels, strings.ToLower(name))
}
