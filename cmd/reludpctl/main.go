// Command reludpctl is a CLI client for reludpd's admin JSON API.
package main

import "github.com/corvidlabs/reludp/cmd/reludpctl/commands"

func main() {
	commands.Execute()
}
