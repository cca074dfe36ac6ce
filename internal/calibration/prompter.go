// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConsolePrompter asks on a terminal. Only "y" or "yes" confirms.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsolePrompter reads answers from in and writes prompts to out.
func NewConsolePrompter(in *bufio.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: in, out: out}
}

func (p *ConsolePrompter) Ask(message string) bool {
	fmt.Fprintf(p.out, "%s\nProceed? [y/N]: ", message)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (p *ConsolePrompter) Notify(message string) {
	fmt.Fprintln(p.out, message)
}
