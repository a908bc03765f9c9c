// The main package for the fetchd executable.
package main

import "github.com/crawlkit/fetchd/cmd"

func main() {
	cmd.Execute()
}
