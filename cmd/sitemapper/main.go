// Command sitemapper crawls a web site and writes a sitemap of every
// link and image it finds.
package main

func main() {
	Execute()
}
