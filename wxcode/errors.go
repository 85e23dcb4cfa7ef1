/*
Copyright © 2018 the IMPROVER authors.
This file is part of IMPROVER.

IMPROVER is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

IMPROVER is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with IMPROVER.  If not, see <http://www.gnu.org/licenses/>.
*/

package wxcode

import "fmt"

// MissingInputError is returned when a diagnostic, or a threshold of a
// diagnostic, that the decision tree needs is not among the inputs.
type MissingInputError struct {
	// Diagnostic is the name of the missing diagnostic.
	Diagnostic string
	// Cube is the name of the probability cube that was looked for.
	Cube string
	// Threshold and Units are set when the cube exists but has no
	// point matching the required threshold.
	Threshold *float64
	Units     string
}

func (e *MissingInputError) Error() string {
	if e.Threshold != nil {
		return fmt.Sprintf("wxcode: input %s has no threshold %g %s required for diagnostic %s",
			e.Cube, *e.Threshold, e.Units, e.Diagnostic)
	}
	return fmt.Sprintf("wxcode: missing input %s required for diagnostic %s", e.Cube, e.Diagnostic)
}

// UnitMismatchError is returned when a threshold can't be converted into
// the units of the corresponding input.
type UnitMismatchError struct {
	Diagnostic string
	From, To   string
	Err        error
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("wxcode: threshold for %s is in %q, which is incompatible with input units %q",
		e.Diagnostic, e.From, e.To)
}

func (e *UnitMismatchError) Unwrap() error { return e.Err }

// ConfigurationError is returned for a malformed decision tree.
type ConfigurationError struct {
	// Node is the name of the offending node, if any.
	Node   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Node == "" {
		return "wxcode: invalid decision tree: " + e.Reason
	}
	return fmt.Sprintf("wxcode: invalid decision tree: node %s: %s", e.Node, e.Reason)
}

func configErr(node, format string, args ...interface{}) error {
	return &ConfigurationError{Node: node, Reason: fmt.Sprintf(format, args...)}
}
