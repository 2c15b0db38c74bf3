// Command novatok is the NovaTok Explorer backend: an HTTP API over an
// ERC-721 contract plus CLI tools for reading, minting and watching it.
package main

func main() {
	Execute()
}
