// Command radcv runs nested cross-validation model selection on radiomic
// feature tables and builds the deployment model from the results.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
