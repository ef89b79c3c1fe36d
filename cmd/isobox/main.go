// Command isobox compiles and runs untrusted source code inside an
// isolate(1)-compatible sandbox.
package main

import "os"

func main() {
	os.Exit(Run(os.Stdin, os.Stdout, os.Stderr, os.Args))
}
