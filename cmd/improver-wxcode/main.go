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

// Command improver-wxcode assigns weather symbols to a grid from threshold
// probability cubes. It is equivalent to 'improver wxcode'.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/improver/improverutil"
)

func main() {
	cfg := improverutil.InitializeConfig()
	if err := cfg.Execute(append([]string{"wxcode"}, os.Args[1:]...)...); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
