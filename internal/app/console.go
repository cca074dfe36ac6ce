// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/relabs-tech/leveler/internal/calibration"
)

// errQuit is returned by RunConsole when the operator types quit.
var errQuit = errors.New("quit")

const consoleHelp = `commands:
  show                   current tilt, adjustments and calibration form
  set <field> <value>    edit rollDeviation, pitchDeviation, wheelbase or drawbar
  zero on|off            reset the device angles on the next submit
  submit                 send the form to the device
  help                   this text
  quit                   stop the client`

// RunConsole reads operator commands from in until EOF, quit or ctx is
// done. Confirmation prompts read from the same reader.
func RunConsole(ctx context.Context, in *bufio.Reader, out io.Writer, ctrl *calibration.Controller, store *ViewStore) error {
	fmt.Fprintln(out, "type help for commands")
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "> ")
		line, err := in.ReadString('\n')
		if line == "" && err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if cmdErr := runCommand(ctx, strings.Fields(line), out, ctrl, store); cmdErr != nil {
			if errors.Is(cmdErr, errQuit) {
				return errQuit
			}
			fmt.Fprintf(out, "error: %v\n", cmdErr)
		}
	}
}

func runCommand(ctx context.Context, args []string, out io.Writer, ctrl *calibration.Controller, store *ViewStore) error {
	if len(args) == 0 {
		return nil
	}
	form := ctrl.Form()

	switch strings.ToLower(args[0]) {
	case "help", "?":
		fmt.Fprintln(out, consoleHelp)

	case "show":
		printStatus(out, store, form.Values())

	case "set":
		if len(args) != 3 {
			return errors.New("usage: set <field> <value>")
		}
		field, err := calibration.ParseField(args[1])
		if err != nil {
			return err
		}
		form.Set(field, args[2])
		fmt.Fprintf(out, "%s = %s\n", field, args[2])

	case "zero":
		if len(args) != 2 {
			return errors.New("usage: zero on|off")
		}
		switch strings.ToLower(args[1]) {
		case "on", "true", "1":
			form.SetZeroAngles(true)
		case "off", "false", "0":
			form.SetZeroAngles(false)
		default:
			return fmt.Errorf("zero: expected on or off, got %q", args[1])
		}
		fmt.Fprintf(out, "zeroAngles = %t\n", form.Values().ZeroAngles)

	case "submit":
		err := ctrl.Submit(ctx)
		switch {
		case errors.Is(err, calibration.ErrUserDeclined):
			// the prompter already printed the notice
		case err != nil:
			return fmt.Errorf("calibration failed: %w", err)
		default:
			fmt.Fprintln(out, "calibration sent")
		}

	case "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try help)", args[0])
	}
	return nil
}

func printStatus(out io.Writer, store *ViewStore, v calibration.Values) {
	fmt.Fprintf(out, "connection: %s\n", store.State())
	if u, ok := store.Latest(); ok {
		s := u.Snapshot
		fmt.Fprintf(out, "roll:  %s°  %s  (%s, tolerance %s°)\n",
			s.RollText, u.Roll.Adjustment.Text, u.Roll.ZoneName, formatTolerance(s.Calibration.RollDeviationDeg))
		fmt.Fprintf(out, "pitch: %s°  %s  (%s, tolerance %s°)\n",
			s.PitchText, u.Pitch.Adjustment.Text, u.Pitch.ZoneName, formatTolerance(s.Calibration.PitchDeviationDeg))
	} else {
		fmt.Fprintln(out, "no reading yet")
	}
	fmt.Fprintf(out, "form:  rollDeviation=%s pitchDeviation=%s wheelbase=%s drawbar=%s zeroAngles=%t\n",
		v.RollDeviation, v.PitchDeviation, v.Wheelbase, v.Drawbar, v.ZeroAngles)
}

// formatTolerance prints a tolerance exactly as stored. Angle rounding
// would show 0.05 as 0.0.
func formatTolerance(deg float64) string {
	return strconv.FormatFloat(deg, 'f', -1, 64)
}
