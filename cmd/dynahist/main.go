// Command dynahist inspects serialized histograms: it decodes a stream
// under a layout given on the command line and prints the recorded
// distribution.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
