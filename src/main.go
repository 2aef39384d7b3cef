// Command spider is the CLI entrypoint; see cmd/spider for the actual
// command tree.
package main

import (
	"github.com/jambudipa/spider/cmd/spider"
)

func main() {
	spider.Execute()
}
