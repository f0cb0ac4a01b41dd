// Command pdfpages rearranges the pages of PDF and image files.
package main

import "github.com/pyhub-apps/pdfpages-golang/internal/cli"

func main() {
	cli.Execute()
}
