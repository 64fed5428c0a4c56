// Package main provides the soundloop command line client.
package main

func main() {
	Execute()
}
