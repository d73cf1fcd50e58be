// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/zhaixiaojuan/maturin/cmd/maturin"

func main() {
	cmd.Execute()
}
