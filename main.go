// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/modresolve/modresolve/cmd/modresolve"

func main() {
	cmd.Execute()
}
