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

// Package improver holds the gridded data model shared by the IMPROVER
// post-processing tools, along with NetCDF input and output.
package improver

// Version is the version of this software.
const Version = "0.4.0"
