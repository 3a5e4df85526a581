// Command pantry manages a product catalog stored in a local SQLite
// database.
package main

import "github.com/mesh-intelligence/pantry/internal/cli"

func main() {
	cli.Execute()
}
