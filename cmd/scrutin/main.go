// Command scrutin tabulates majority-judgment ballots and serves results.
package main

import "github.com/ahrav/go-scrutin/internal/cli"

func main() {
	cli.Execute()
}
