// Package chunk accumulates indented source lines.
package chunk

import (
	"slices"
	"strings"
)

const indentUnit = "    "

// Chunk is a list of lines with a current indentation level.
// Lines can be inserted at a position taken earlier with Tell.
type Chunk struct {
	lines []string
	level int
}

func New() *Chunk {
	return &Chunk{}
}

func (c *Chunk) Indent() {
	c.level++
}

func (c *Chunk) Unindent() {
	if c.level > 0 {
		c.level--
	}
}

// Write appends one line at the current indentation. Empty lines stay empty.
func (c *Chunk) Write(line string) {
	if line != "" {
		line = strings.Repeat(indentUnit, c.level) + line
	}
	c.lines = append(c.lines, line)
}

// WriteLines appends lines at the current indentation.
func (c *Chunk) WriteLines(lines ...string) {
	for _, line := range lines {
		c.Write(line)
	}
}

// Block writes header and runs body one level deeper.
func (c *Chunk) Block(header string, body func()) {
	c.Write(header)
	c.Indent()
	defer c.Unindent()
	body()
}

// Tell returns the position of the next line.
func (c *Chunk) Tell() int {
	return len(c.lines)
}

// Insert places lines before the line at pos, as written.
func (c *Chunk) Insert(pos int, lines ...string) {
	c.lines = slices.Insert(c.lines, pos, lines...)
}

func (c *Chunk) String() string {
	return strings.Join(c.lines, "\n")
}
