// Command scrapekit serves the scrape API or runs a single scrape from the
// command line.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
