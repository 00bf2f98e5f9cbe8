// File: cmd/jobs/main.go
package main

import "os"

// main is the operator CLI's entrypoint, mirroring the teacher's citadel-cli
// convention of a thin main.go that just calls into the cobra root command.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
