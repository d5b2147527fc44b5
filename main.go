// Command qacrawler runs the yacht-insurance Q&A pipeline.
package main

import "github.com/JakeFAU/yacht-qa-crawler/cmd"

func main() {
	cmd.Execute()
}
